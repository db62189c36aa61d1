// Package collector retrieves historical candles for a symbol and falls back to
// a synthetic series whenever the configured provider cannot serve them.
package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

const (
	defaultFetchTimeout = 10 * time.Second
	quoteTimeframe      = "1d"
)

// CandleProvider defines the interface for fetching historical candles.
type CandleProvider interface {
	// Name identifies the provider in results and logs.
	Name() string
	// GetCandles fetches up to limit candles for symbol, newest first.
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
}

// SeriesGenerator produces stand-in candles, newest first.
type SeriesGenerator interface {
	Generate(symbol, timeframe string, count int) []domain.Candle
}

type fetchObserver interface {
	ObserveMarketData(source string)
}

// MarketDataCollector serves historical candles, never failing: provider errors
// are logged and answered with a synthetic series.
type MarketDataCollector struct {
	provider  CandleProvider
	generator SeriesGenerator
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
	observer  fetchObserver
}

// Option configures a MarketDataCollector.
type Option func(*MarketDataCollector)

// WithTimeout bounds each provider call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *MarketDataCollector) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithClock replaces the clock used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *MarketDataCollector) {
		c.now = now
	}
}

// WithObserver reports the data source of every fetch.
func WithObserver(observer fetchObserver) Option {
	return func(c *MarketDataCollector) {
		c.observer = observer
	}
}

// NewMarketDataCollector creates a collector. A nil provider always serves synthetic data.
func NewMarketDataCollector(provider CandleProvider, generator SeriesGenerator, logger *zap.Logger, opts ...Option) *MarketDataCollector {
	c := &MarketDataCollector{
		provider:  provider,
		generator: generator,
		logger:    logger,
		timeout:   defaultFetchTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchHistorical returns up to limit candles, newest first.
func (c *MarketDataCollector) FetchHistorical(ctx context.Context, symbol, timeframe string, limit int) domain.MarketDataResult {
	if limit < 0 {
		limit = 0
	}

	if c.provider != nil {
		candles, err := c.fetchFromProvider(ctx, symbol, timeframe, limit)
		if err == nil {
			c.observe(domain.DataSourceProvider)
			return domain.NewMarketDataResult(candles, domain.DataSourceProvider, c.provider.Name(), c.now())
		}

		c.logger.Warn("market data provider unavailable, using synthetic series",
			zap.String("provider", c.provider.Name()),
			zap.String("symbol", symbol),
			zap.String("timeframe", timeframe),
			zap.Error(err),
		)
	}

	c.observe(domain.DataSourceSynthetic)
	candles := c.generator.Generate(symbol, timeframe, limit)

	return domain.NewMarketDataResult(candles, domain.DataSourceSynthetic, domain.SyntheticProviderName, c.now())
}

// GetRealTimePrice returns the latest daily close.
func (c *MarketDataCollector) GetRealTimePrice(ctx context.Context, symbol string) domain.PriceQuote {
	result := c.FetchHistorical(ctx, symbol, quoteTimeframe, 1)

	return domain.PriceQuote{
		Symbol:    symbol,
		Price:     result.LatestPrice,
		Source:    result.Source,
		Timestamp: result.Timestamp,
	}
}

func (c *MarketDataCollector) fetchFromProvider(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	candles, err := c.provider.GetCandles(ctxWithTimeout, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	if len(candles) == 0 {
		return nil, errEmptySeries
	}

	return candles, nil
}

func (c *MarketDataCollector) observe(source domain.DataSource) {
	if c.observer != nil {
		c.observer.ObserveMarketData(string(source))
	}
}
