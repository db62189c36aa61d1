package aidecisions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

func testRecord(symbol string, action domain.Action) domain.AuditRecord {
	return domain.NewAuditRecord(&domain.AnalysisResult{
		Symbol:     symbol,
		Timeframe:  "1d",
		Action:     action,
		Confidence: 0.35,
		RiskLevel:  domain.RiskLow,
		ModelsUsed: domain.BaseModelsUsed(),
		DataSource: domain.DataSourceProvider,
	}, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
}

func TestWALStore_SaveAndRead(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	assert.Zero(t, store.CurrentIndex())

	for i, action := range []domain.Action{domain.ActionBuy, domain.ActionSell, domain.ActionHold} {
		require.NoError(t, store.Save(ctx, testRecord(fmt.Sprintf("SYM%d", i), action)))
	}
	assert.Equal(t, uint64(3), store.CurrentIndex())

	all, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(1), all[0].Index)
	assert.Equal(t, "SYM0", all[0].Record.Symbol)
	assert.Equal(t, domain.ActionBuy, all[0].Record.Action)
	assert.Equal(t, domain.BaseModelsUsed(), all[0].Record.ModelsUsed)

	tail, err := store.EventsAfter(2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "SYM2", tail[0].Record.Symbol)

	none, err := store.EventsAfter(3)
	require.NoError(t, err)
	assert.Empty(t, none)

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "SYM2", recent[0].Symbol)
	assert.Equal(t, "SYM1", recent[1].Symbol)
}

func TestWALStore_Validation(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	err = store.Save(context.Background(), domain.AuditRecord{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Save(ctx, testRecord("BTC-USD", domain.ActionBuy))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.CurrentIndex())
}

func TestWALStore_NilStore(t *testing.T) {
	var store *WALStore

	assert.ErrorIs(t, store.Save(context.Background(), testRecord("X", domain.ActionHold)), ErrNotInitialized)
	_, err := store.EventsAfter(0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Zero(t, store.CurrentIndex())
	assert.ErrorIs(t, store.Close(), ErrNotInitialized)
}
