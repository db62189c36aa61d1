package providers

import (
	"context"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

// BybitName identifies the Bybit provider.
const BybitName = "bybit"

const bybitMaxLimit = 1000

// BybitKlineProvider fetches spot klines from Bybit V5 public market data.
type BybitKlineProvider struct {
	client *bybit.Client
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client}
}

// Name returns the provider identifier.
func (p *BybitKlineProvider) Name() string {
	return BybitName
}

// BybitInterval maps a timeframe to a Bybit kline interval ("1", "60", "D", ...).
func BybitInterval(timeframe string) bybit.Interval {
	if minutes, ok := domain.IntradayMinutes(timeframe); ok {
		return bybit.Interval(strconv.Itoa(minutes))
	}

	switch {
	case domain.IsWeekly(timeframe):
		return bybit.Interval("W")
	case domain.IsMonthly(timeframe):
		return bybit.Interval("M")
	default:
		return bybit.Interval("D")
	}
}

// GetCandles fetches kline data from Bybit, newest first.
func (p *BybitKlineProvider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	if limit > bybitMaxLimit {
		limit = bybitMaxLimit
	}

	pair := ExchangeSymbol(symbol)
	param := bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(pair),
		Interval: BybitInterval(timeframe),
		Limit:    &limit,
	}

	// the bybit client has no context support, so honor cancellation around the call
	type klineResult struct {
		res *bybit.V5GetKlineResponse
		err error
	}
	done := make(chan klineResult, 1)
	go func() {
		res, err := p.client.V5().Market().GetKline(param)
		done <- klineResult{res: res, err: err}
	}()

	var out klineResult
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "bybit kline request")
	case out = <-done:
	}

	if out.err != nil {
		return nil, errors.Wrapf(out.err, "failed to fetch klines from Bybit for %s", pair)
	}
	if out.res == nil {
		return nil, errors.Errorf("empty result from Bybit API for %s", pair)
	}

	klines := out.res.Result.List
	candles := make([]domain.Candle, len(klines))
	for i, k := range klines {
		msec, err := strconv.ParseInt(k.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}

		c, err := klineCandle(time.UnixMilli(msec), k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		candles[i] = c
	}

	// bybit already lists klines newest first

	return candles, nil
}
