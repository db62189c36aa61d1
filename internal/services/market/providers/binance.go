package providers

import (
	"context"
	"slices"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

// BinanceName identifies the Binance provider.
const BinanceName = "binance"

const binanceMaxLimit = 1000

// BinanceKlineProvider fetches spot klines from Binance public market data.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// Name returns the provider identifier.
func (p *BinanceKlineProvider) Name() string {
	return BinanceName
}

// BinanceInterval maps a timeframe to a Binance kline interval.
func BinanceInterval(timeframe string) string {
	switch timeframe {
	case "1m", "5m", "15m", "30m", "1h":
		return timeframe
	case "60m":
		return "1h"
	case "1w", "1wk":
		return "1w"
	case "1mo", "1mth":
		return "1M"
	default:
		return "1d"
	}
}

// GetCandles fetches kline data from Binance, newest first.
func (p *BinanceKlineProvider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	if limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}

	pair := ExchangeSymbol(symbol)
	klines, err := p.client.NewKlinesService().
		Symbol(pair).
		Interval(BinanceInterval(timeframe)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", pair)
	}

	result := make([]domain.Candle, len(klines))
	for i, k := range klines {
		c, err := klineCandle(time.UnixMilli(k.OpenTime), k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		result[i] = c
	}

	slices.Reverse(result)

	return result, nil
}

// klineCandle converts exchange string prices to a candle.
func klineCandle(openTime time.Time, open, high, low, closePrice, volume string) (domain.Candle, error) {
	o, err := decimal.NewFromString(open)
	if err != nil {
		return domain.Candle{}, errors.Wrap(err, "failed to parse open price")
	}
	h, err := decimal.NewFromString(high)
	if err != nil {
		return domain.Candle{}, errors.Wrap(err, "failed to parse high price")
	}
	l, err := decimal.NewFromString(low)
	if err != nil {
		return domain.Candle{}, errors.Wrap(err, "failed to parse low price")
	}
	c, err := decimal.NewFromString(closePrice)
	if err != nil {
		return domain.Candle{}, errors.Wrap(err, "failed to parse close price")
	}
	v, err := decimal.NewFromString(volume)
	if err != nil {
		return domain.Candle{}, errors.Wrap(err, "failed to parse volume")
	}

	return domain.Candle{
		Time:   openTime.UTC().Format(time.RFC3339),
		Open:   o.InexactFloat64(),
		High:   h.InexactFloat64(),
		Low:    l.InexactFloat64(),
		Close:  c.InexactFloat64(),
		Volume: v.IntPart(),
	}, nil
}
