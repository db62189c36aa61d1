package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/internal/domain"
	"github.com/vadiminshakov/marketsignal/internal/services/promptbuilder"
)

type stubMarket struct {
	result domain.MarketDataResult

	mu       sync.Mutex
	calls    int
	gotLimit int
	gotTF    string
}

func (m *stubMarket) FetchHistorical(_ context.Context, _, timeframe string, limit int) domain.MarketDataResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.gotLimit = limit
	m.gotTF = timeframe
	return m.result
}

type stubAnalyst struct {
	opinion *domain.ExternalOpinion
	err     error
	gotIn   promptbuilder.ChartAnalysisInput
}

func (a *stubAnalyst) Model() string { return "qwen/qwen3-coder:free" }

func (a *stubAnalyst) AnalyzeChart(_ context.Context, in promptbuilder.ChartAnalysisInput) (*domain.ExternalOpinion, error) {
	a.gotIn = in
	return a.opinion, a.err
}

type stubSink struct {
	records []domain.AuditRecord
	err     error
}

func (s *stubSink) Save(_ context.Context, record domain.AuditRecord) error {
	s.records = append(s.records, record)
	return s.err
}

type stubObserver struct {
	actions       []string
	opinions      []string
	auditFailures int
}

func (o *stubObserver) ObserveAnalysis(action string, _ time.Duration) {
	o.actions = append(o.actions, action)
}
func (o *stubObserver) ObserveOpinion(outcome string) { o.opinions = append(o.opinions, outcome) }
func (o *stubObserver) ObserveAuditFailure()          { o.auditFailures++ }

var testNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

// risingSeries returns newest-first candles whose closes rise by step per candle.
func risingSeries(n int, start, step float64) []domain.Candle {
	candles := make([]domain.Candle, n)
	for i := 0; i < n; i++ {
		price := start + step*float64(n-1-i)
		candles[i] = domain.Candle{Open: price - step, High: price + 1, Low: price - step - 1, Close: price, Volume: 1000}
	}
	return candles
}

func marketWith(candles []domain.Candle, source domain.DataSource) *stubMarket {
	return &stubMarket{result: domain.NewMarketDataResult(candles, source, "stub", testNow)}
}

func TestNormalizeRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.AnalysisRequest
		want    domain.AnalysisRequest
		wantErr bool
	}{
		{name: "defaults timeframe", req: domain.AnalysisRequest{Symbol: " BTC-USD "}, want: domain.AnalysisRequest{Symbol: "BTC-USD", Timeframe: "1d"}},
		{name: "keeps timeframe", req: domain.AnalysisRequest{Symbol: "EURUSD", Timeframe: "1h"}, want: domain.AnalysisRequest{Symbol: "EURUSD", Timeframe: "1h"}},
		{name: "dots and slashes", req: domain.AnalysisRequest{Symbol: "BRK.B"}, want: domain.AnalysisRequest{Symbol: "BRK.B", Timeframe: "1d"}},
		{name: "empty", req: domain.AnalysisRequest{Symbol: "   "}, wantErr: true},
		{name: "too long", req: domain.AnalysisRequest{Symbol: "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456"}, wantErr: true},
		{name: "bad characters", req: domain.AnalysisRequest{Symbol: "BTC USD"}, wantErr: true},
		{name: "query injection", req: domain.AnalysisRequest{Symbol: "IBM&apikey=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRequest(tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyze_InvalidRequestDoesNoWork(t *testing.T) {
	market := marketWith(risingSeries(10, 100, 1), domain.DataSourceProvider)
	sink := &stubSink{}
	s := NewService(market, zap.NewNop(), WithAuditSink(sink))

	_, err := s.Analyze(context.Background(), domain.AnalysisRequest{Symbol: ""})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Zero(t, market.calls)
	assert.Empty(t, sink.records)
}

func TestAnalyze_WithoutOpinion(t *testing.T) {
	market := marketWith(risingSeries(120, 100, 1), domain.DataSourceSynthetic)
	sink := &stubSink{}
	observer := &stubObserver{}
	analyst := &stubAnalyst{opinion: &domain.ExternalOpinion{Model: "x"}}
	s := NewService(market, zap.NewNop(),
		WithAuditSink(sink),
		WithObserver(observer),
		WithChartAnalyst(analyst),
		WithClock(func() time.Time { return testNow }),
	)

	result, err := s.Analyze(context.Background(), domain.AnalysisRequest{Symbol: "BTC-USD"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "BTC-USD", result.Symbol)
	assert.Equal(t, "1d", result.Timeframe)
	assert.Equal(t, 120, market.gotLimit)
	assert.Equal(t, "1d", market.gotTF)

	// steady rise: RSI saturates, overriding the bullish crossover
	assert.Equal(t, domain.ActionSell, result.Action)
	assert.Equal(t, 100.0, result.TechnicalIndicators.RSI)
	assert.Equal(t, []string{"technical_sma", "rsi", "volatility_model"}, result.ModelsUsed)
	assert.Nil(t, result.ExternalOpinion)
	assert.Equal(t, domain.DataSourceSynthetic, result.DataSource)
	assert.Equal(t, "2026-04-02T09:30:00Z", result.Timestamp)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))
	assert.Equal(t, testNow.UnixMilli(), result.RiskAssessment.LastUpdated)
	assert.Equal(t, result.TechnicalIndicators.Momentum, result.RiskAssessment.RecentTrend)
	assert.Equal(t, "Volatility is manageable.", result.RiskAssessment.Notes)

	require.Len(t, sink.records, 1)
	assert.Equal(t, result.Action, sink.records[0].Action)
	assert.Equal(t, "1d", sink.records[0].Metadata.Timeframe)

	assert.Equal(t, []string{"sell"}, observer.actions)
	assert.Empty(t, observer.opinions)
}

func TestAnalyze_WithOpinion(t *testing.T) {
	confidence := 72.0
	analyst := &stubAnalyst{opinion: &domain.ExternalOpinion{
		Model:         "qwen/qwen3-coder:free",
		Analysis:      "BUY",
		TradingSignal: domain.ActionBuy,
		Confidence:    &confidence,
	}}
	market := marketWith(risingSeries(120, 100, 1), domain.DataSourceProvider)
	observer := &stubObserver{}
	s := NewService(market, zap.NewNop(), WithChartAnalyst(analyst), WithObserver(observer))

	result, err := s.Analyze(context.Background(), domain.AnalysisRequest{Symbol: "ETH-USD", Timeframe: "1h", IncludeExternalOpinion: true})
	require.NoError(t, err)

	require.NotNil(t, result.ExternalOpinion)
	assert.Equal(t, domain.ActionBuy, result.ExternalOpinion.TradingSignal)
	assert.Equal(t, []string{"technical_sma", "rsi", "volatility_model", "qwen/qwen3-coder:free"}, result.ModelsUsed)
	assert.Equal(t, []string{"success"}, observer.opinions)

	assert.Equal(t, "ETH-USD", analyst.gotIn.Symbol)
	assert.Equal(t, "1h", analyst.gotIn.Timeframe)
	assert.Equal(t, 219.0, analyst.gotIn.Chart.LatestPrice)
	assert.Equal(t, 119.0, analyst.gotIn.Chart.PriceChange)
	require.NotNil(t, analyst.gotIn.Trend)
	assert.Equal(t, domain.TrendDirectionBullish, analyst.gotIn.Trend.Trend)
}

func TestAnalyze_OpinionFailureIsOmitted(t *testing.T) {
	tests := []struct {
		name    string
		analyst *stubAnalyst
	}{
		{name: "error", analyst: &stubAnalyst{err: errors.New("timeout")}},
		{name: "nil opinion", analyst: &stubAnalyst{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer := &stubObserver{}
			s := NewService(marketWith(risingSeries(30, 50, 0.1), domain.DataSourceProvider), zap.NewNop(),
				WithChartAnalyst(tt.analyst), WithObserver(observer))

			result, err := s.Analyze(context.Background(), domain.AnalysisRequest{Symbol: "AAPL", IncludeExternalOpinion: true})
			require.NoError(t, err)

			assert.Nil(t, result.ExternalOpinion)
			assert.Equal(t, domain.BaseModelsUsed(), result.ModelsUsed)
			assert.Equal(t, []string{"failure"}, observer.opinions)
			assert.Nil(t, tt.analyst.gotIn.Trend, "30 candles are too few for a trend summary")
		})
	}
}

func TestAnalyze_AuditFailureIsNotReturned(t *testing.T) {
	sink := &stubSink{err: errors.New("disk full")}
	observer := &stubObserver{}
	s := NewService(marketWith(risingSeries(60, 10, 0), domain.DataSourceProvider), zap.NewNop(),
		WithAuditSink(sink), WithObserver(observer))

	result, err := s.Analyze(context.Background(), domain.AnalysisRequest{Symbol: "MSFT"})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, observer.auditFailures)
	assert.Len(t, sink.records, 1)
}

func TestAnalyze_EmptySeries(t *testing.T) {
	s := NewService(marketWith(nil, domain.DataSourceSynthetic), zap.NewNop())

	result, err := s.Analyze(context.Background(), domain.AnalysisRequest{Symbol: "XYZ"})
	require.NoError(t, err)

	assert.Equal(t, domain.TechnicalIndicators{RSI: 50}, result.TechnicalIndicators)
	assert.Equal(t, domain.ActionHold, result.Action)
	assert.Equal(t, 0.1, result.Confidence)
	assert.Equal(t, domain.RiskLow, result.RiskLevel)
}

func TestAnalyze_HighVolatilityNotes(t *testing.T) {
	candles := make([]domain.Candle, 60)
	for i := range candles {
		price := 100.0
		if i%2 == 0 {
			price = 130
		}
		candles[i] = domain.Candle{Open: price, High: price, Low: price, Close: price}
	}
	s := NewService(marketWith(candles, domain.DataSourceProvider), zap.NewNop())

	result, err := s.Analyze(context.Background(), domain.AnalysisRequest{Symbol: "TSLA"})
	require.NoError(t, err)

	assert.Equal(t, domain.RiskHigh, result.RiskLevel)
	assert.Equal(t, "Price action is highly volatile.", result.RiskAssessment.Notes)
}

func TestSummary(t *testing.T) {
	result := &domain.AnalysisResult{Symbol: "BTC-USD", Timeframe: "1d", Action: domain.ActionBuy, Confidence: 0.42, RiskLevel: domain.RiskMedium}
	assert.Equal(t, "BTC-USD 1d: BUY (confidence 42%, medium risk)", Summary(result))
}
