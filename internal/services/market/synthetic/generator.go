// Package synthetic generates deterministic stand-in price series used when
// no market data provider can serve a request.
package synthetic

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

const (
	basePriceModulo = 500
	basePriceFloor  = 50
	minClose        = 1
	maxJitter       = 2
	baseVolume      = 1000
	volumeJitter    = 500
	timeLayout      = "2006-01-02T15:04:05.000Z07:00"
)

// RandomSource supplies uniform draws in [0,1) for high/low/volume jitter.
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Generator produces synthetic candles. It is safe for concurrent use when its
// random source is.
type Generator struct {
	rnd RandomSource
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRandomSource replaces the jitter source.
func WithRandomSource(rnd RandomSource) Option {
	return func(g *Generator) {
		g.rnd = rnd
	}
}

// WithClock replaces the clock used to timestamp candles.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator backed by the global math/rand/v2 source and time.Now.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rnd: globalSource{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Seed sums the character codes of the symbol.
func Seed(symbol string) int {
	seed := 0
	for _, r := range symbol {
		seed += int(r)
	}

	return seed
}

// BasePrice is the opening price of the oldest generated step for the symbol.
func BasePrice(symbol string) float64 {
	return float64(Seed(symbol)%basePriceModulo + basePriceFloor)
}

// Generate returns count candles, newest first. The price path depends only on
// symbol and count; high, low and volume carry random jitter.
func (g *Generator) Generate(symbol, timeframe string, count int) []domain.Candle {
	if count <= 0 {
		return []domain.Candle{}
	}

	step := domain.TimeframeDuration(timeframe)
	now := g.now()
	current := BasePrice(symbol)

	candles := make([]domain.Candle, 0, count)
	for i := 0; i < count; i++ {
		fi := float64(i)
		noise := math.Sin(fi/5)*2 + math.Cos(fi/7)*1.5
		trend := fi / float64(count) * 5

		open := current
		closePrice := math.Max(minClose, open+noise+trend/10)
		high := math.Max(open, closePrice) + g.uniform(maxJitter)
		low := math.Min(open, closePrice) - g.uniform(maxJitter)
		volume := int64(math.Floor(baseVolume + g.uniform(volumeJitter)))

		candles = append(candles, domain.Candle{
			Time:   now.Add(-time.Duration(i) * step).UTC().Format(timeLayout),
			Open:   domain.Round2(open),
			High:   domain.Round2(high),
			Low:    domain.Round2(low),
			Close:  domain.Round2(closePrice),
			Volume: volume,
		})

		current = closePrice
	}

	return candles
}

func (g *Generator) uniform(span float64) float64 {
	return g.rnd.Float64() * span
}
