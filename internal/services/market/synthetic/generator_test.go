package synthetic

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

type sequenceSource struct {
	values []float64
	pos    int
}

func (s *sequenceSource) Float64() float64 {
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := NewGenerator(WithRandomSource(fixedSource(0.5)), WithClock(fixedClock))
	b := NewGenerator(WithRandomSource(fixedSource(0.5)), WithClock(fixedClock))

	assert.Equal(t, a.Generate("BTC-USD", "1d", 120), b.Generate("BTC-USD", "1d", 120))
}

func TestGenerate_PricePathIgnoresJitter(t *testing.T) {
	low := NewGenerator(WithRandomSource(fixedSource(0)), WithClock(fixedClock)).Generate("AAPL", "1h", 60)
	high := NewGenerator(WithRandomSource(fixedSource(0.99)), WithClock(fixedClock)).Generate("AAPL", "1h", 60)

	require.Len(t, low, 60)
	require.Len(t, high, 60)
	for i := range low {
		assert.Equal(t, low[i].Open, high[i].Open)
		assert.Equal(t, low[i].Close, high[i].Close)
		assert.Equal(t, low[i].Time, high[i].Time)
	}
}

func TestGenerate_FirstStep(t *testing.T) {
	g := NewGenerator(WithRandomSource(fixedSource(0.5)), WithClock(fixedClock))

	candles := g.Generate("AAPL", "1d", 10)
	require.Len(t, candles, 10)

	// A+A+P+L = 65+65+80+76 = 286, base = 286 % 500 + 50 = 336.
	// i=0: noise = cos(0)*1.5 = 1.5, trend = 0, close = 337.5.
	first := candles[0]
	assert.Equal(t, 336.0, first.Open)
	assert.Equal(t, 337.5, first.Close)
	assert.Equal(t, 338.5, first.High)
	assert.Equal(t, 335.0, first.Low)
	assert.Equal(t, int64(1250), first.Volume)
	assert.Equal(t, "2026-01-10T12:00:00.000Z", first.Time)
	assert.Equal(t, first.Close, candles[1].Open)
}

func TestGenerate_OHLCInvariant(t *testing.T) {
	src := &sequenceSource{values: []float64{0, 0.13, 0.5, 0.77, 0.999}}
	g := NewGenerator(WithRandomSource(src), WithClock(fixedClock))

	for _, symbol := range []string{"BTC-USD", "EURUSD", "TSLA", "X", "€"} {
		t.Run(symbol, func(t *testing.T) {
			for _, c := range g.Generate(symbol, "15m", 200) {
				assert.LessOrEqual(t, c.Low, math.Min(c.Open, c.Close))
				assert.GreaterOrEqual(t, c.High, math.Max(c.Open, c.Close))
				assert.GreaterOrEqual(t, c.Close, 1.0)
				assert.GreaterOrEqual(t, c.Volume, int64(1000))
				assert.Less(t, c.Volume, int64(1500))
			}
		})
	}
}

func TestGenerate_TimeDescending(t *testing.T) {
	tests := []struct {
		timeframe string
		step      time.Duration
	}{
		{"1m", time.Minute},
		{"1h", time.Hour},
		{"1d", 24 * time.Hour},
		{"1wk", 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.timeframe, func(t *testing.T) {
			g := NewGenerator(WithRandomSource(fixedSource(0.1)), WithClock(fixedClock))
			candles := g.Generate("ETH-USD", tt.timeframe, 5)
			require.Len(t, candles, 5)

			for i := 1; i < len(candles); i++ {
				prev, err := time.Parse(time.RFC3339, candles[i-1].Time)
				require.NoError(t, err)
				cur, err := time.Parse(time.RFC3339, candles[i].Time)
				require.NoError(t, err)
				assert.Equal(t, tt.step, prev.Sub(cur))
			}
		})
	}
}

func TestGenerate_EmptyCount(t *testing.T) {
	g := NewGenerator()

	assert.Empty(t, g.Generate("BTC-USD", "1d", 0))
	assert.NotNil(t, g.Generate("BTC-USD", "1d", 0))
	assert.Empty(t, g.Generate("BTC-USD", "1d", -3))
}

func TestBasePrice(t *testing.T) {
	assert.Equal(t, 50.0, BasePrice(""))
	assert.Equal(t, 336.0, BasePrice("AAPL"))
	assert.Equal(t, float64(Seed("BTC-USD")%500+50), BasePrice("BTC-USD"))
}
