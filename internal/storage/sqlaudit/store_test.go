package sqlaudit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "audit.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStore_SaveAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	confidence := 64.0
	for i, symbol := range []string{"BTC-USD", "EURUSD", "AAPL"} {
		result := &domain.AnalysisResult{
			Symbol:          symbol,
			Timeframe:       "1h",
			Action:          domain.ActionSell,
			Confidence:      0.25,
			RiskLevel:       domain.RiskHigh,
			ModelsUsed:      append(domain.BaseModelsUsed(), "qwen/qwen3-coder:free"),
			DataSource:      domain.DataSourceSynthetic,
			ExecutionTimeMs: int64(10 + i),
			TechnicalIndicators: domain.TechnicalIndicators{
				SMAShort: 10, SMALong: 11, RSI: 72.5, Volatility: 40, Momentum: -2,
			},
			RiskAssessment:  domain.RiskAssessment{Volatility: 40, Notes: "Price action is highly volatile."},
			ExternalOpinion: &domain.ExternalOpinion{Model: "qwen/qwen3-coder:free", Confidence: &confidence},
		}
		require.NoError(t, store.Save(ctx, domain.NewAuditRecord(result, base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	newest := recent[0]
	assert.Equal(t, "AAPL", newest.Symbol)
	assert.Equal(t, domain.ActionSell, newest.Action)
	assert.Equal(t, domain.RiskHigh, newest.RiskLevel)
	assert.Equal(t, 0.25, newest.Confidence)
	assert.Equal(t, int64(12), newest.ExecutionTimeMs)
	assert.Equal(t, base.Add(2*time.Minute), newest.Timestamp)
	assert.Equal(t, []string{"technical_sma", "rsi", "volatility_model", "qwen/qwen3-coder:free"}, newest.ModelsUsed)
	assert.Equal(t, "1h", newest.Metadata.Timeframe)
	assert.Equal(t, 72.5, newest.Metadata.Indicators.RSI)
	require.NotNil(t, newest.Metadata.ExternalOpinion)
	assert.Equal(t, 64.0, *newest.Metadata.ExternalOpinion.Confidence)

	assert.Equal(t, "EURUSD", recent[1].Symbol)
}

func TestStore_DuplicateID(t *testing.T) {
	store := openTestStore(t)
	record := domain.NewAuditRecord(&domain.AnalysisResult{Symbol: "BTC-USD", Action: domain.ActionHold}, time.Now())

	require.NoError(t, store.Save(context.Background(), record))
	assert.Error(t, store.Save(context.Background(), record))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn", zap.NewNop())
	assert.Error(t, err)
}

func TestDialectPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", dialects[DriverPostgres].placeholders(3))
	assert.Equal(t, "?, ?, ?", dialects[DriverSQLite].placeholders(3))
}
