package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeModelName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "base model",
			input:    ModelTechnicalSMA,
			expected: ModelTechnicalSMA,
		},
		{
			name:     "folder URI with version",
			input:    "gpt://b1g8t5pmnjifaov0paff/yandexgpt/rc",
			expected: "yandexgpt",
		},
		{
			name:     "folder URI",
			input:    "gpt://folder/yandexgpt",
			expected: "yandexgpt",
		},
		{
			name:     "folder URI without model",
			input:    "gpt://folder",
			expected: "gpt://folder",
		},
		{
			name:     "OpenRouter model",
			input:    "qwen/qwen3-coder:free",
			expected: "qwen/qwen3-coder:free",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeModelName(tt.input))
		})
	}
}

func TestNewAuditRecord(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result := &AnalysisResult{
		Symbol:          "BTC-USD",
		Timeframe:       "1h",
		Action:          ActionBuy,
		Confidence:      0.42,
		RiskLevel:       RiskMedium,
		ModelsUsed:      []string{ModelTechnicalSMA, ModelRSI, ModelVolatilityModel, "gpt://folder/yandexgpt/latest"},
		DataSource:      DataSourceSynthetic,
		ExecutionTimeMs: 17,
		TechnicalIndicators: TechnicalIndicators{
			SMAShort: 101.5,
			SMALong:  99.1,
			RSI:      55,
		},
	}

	record := NewAuditRecord(result, ts)

	require.NotEmpty(t, record.ID)
	assert.Equal(t, ts, record.Timestamp)
	assert.Equal(t, "BTC-USD", record.Symbol)
	assert.Equal(t, ActionBuy, record.Action)
	assert.Equal(t, []string{ModelTechnicalSMA, ModelRSI, ModelVolatilityModel, "yandexgpt"}, record.ModelsUsed)
	assert.Equal(t, "1h", record.Metadata.Timeframe)
	assert.Equal(t, DataSourceSynthetic, record.Metadata.DataSource)
	assert.Equal(t, result.TechnicalIndicators, record.Metadata.Indicators)
	assert.Equal(t, "gpt://folder/yandexgpt/latest", result.ModelsUsed[3], "result must not be mutated")

	other := NewAuditRecord(result, ts)
	assert.NotEqual(t, record.ID, other.ID)
}

func TestChartSummary(t *testing.T) {
	now := time.Unix(1700000000, 0)

	t.Run("empty series", func(t *testing.T) {
		result := NewMarketDataResult(nil, DataSourceSynthetic, SyntheticProviderName, now)
		assert.Equal(t, ChartSummary{}, result.ChartSummary())
		assert.Zero(t, result.LatestPrice)
		assert.NotNil(t, result.Candles)
	})

	t.Run("newest first", func(t *testing.T) {
		candles := []Candle{
			{Close: 110, High: 112, Low: 108},
			{Close: 105, High: 115, Low: 104},
			{Close: 100, High: 101, Low: 95},
		}
		result := NewMarketDataResult(candles, DataSourceProvider, "alphavantage", now)

		assert.Equal(t, 110.0, result.LatestPrice)
		assert.Equal(t, now.UnixMilli(), result.Timestamp)
		assert.Equal(t, ChartSummary{
			LatestPrice:  110,
			PriceChange:  10,
			HighestPrice: 115,
			LowestPrice:  95,
		}, result.ChartSummary())
	})
}

func TestChronologicalCloses(t *testing.T) {
	candles := []Candle{{Close: 3}, {Close: 2}, {Close: 1}}
	assert.Equal(t, []float64{1, 2, 3}, ChronologicalCloses(candles))
	assert.Empty(t, ChronologicalCloses(nil))
}

func TestTimeframeDuration(t *testing.T) {
	tests := []struct {
		timeframe string
		expected  time.Duration
	}{
		{"1m", time.Minute},
		{"5m", 5 * time.Minute},
		{"15m", 15 * time.Minute},
		{"30m", 30 * time.Minute},
		{"60m", time.Hour},
		{"1h", time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1wk", 7 * 24 * time.Hour},
		{"1mo", 30 * 24 * time.Hour},
		{"1mth", 30 * 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"bogus", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.timeframe, func(t *testing.T) {
			assert.Equal(t, tt.expected, TimeframeDuration(tt.timeframe))
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.24, Round2(1.235))
	assert.Equal(t, -1.24, Round2(-1.235))
	assert.Equal(t, 100.0, Round2(99.999))
	assert.Zero(t, Round2(0))
}
