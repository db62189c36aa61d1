package domain

import "time"

// DataSource tells whether candles came from a real provider or the synthetic generator.
type DataSource string

const (
	DataSourceProvider  DataSource = "provider"
	DataSourceSynthetic DataSource = "synthetic"
)

// SyntheticProviderName is reported as the provider of generated series.
const SyntheticProviderName = "synthetic"

// MarketDataResult candles for one request, newest first.
type MarketDataResult struct {
	Candles     []Candle   `json:"candles"`
	LatestPrice float64    `json:"latestPrice"`
	Source      DataSource `json:"source"`
	Provider    string     `json:"provider"`
	Timestamp   int64      `json:"timestamp"`
}

// NewMarketDataResult builds a result whose latest price is the close of the newest candle.
func NewMarketDataResult(candles []Candle, source DataSource, provider string, now time.Time) MarketDataResult {
	if candles == nil {
		candles = []Candle{}
	}

	var latest float64
	if len(candles) > 0 {
		latest = candles[0].Close
	}

	return MarketDataResult{
		Candles:     candles,
		LatestPrice: latest,
		Source:      source,
		Provider:    provider,
		Timestamp:   now.UnixMilli(),
	}
}

// ChartSummary reduces the series to the figures shared with the external analyst.
// Zero values are returned for an empty series.
func (r MarketDataResult) ChartSummary() ChartSummary {
	if len(r.Candles) == 0 {
		return ChartSummary{}
	}

	summary := ChartSummary{
		LatestPrice:  r.LatestPrice,
		PriceChange:  r.Candles[0].Close - r.Candles[len(r.Candles)-1].Close,
		HighestPrice: r.Candles[0].High,
		LowestPrice:  r.Candles[0].Low,
	}
	for _, c := range r.Candles[1:] {
		if c.High > summary.HighestPrice {
			summary.HighestPrice = c.High
		}
		if c.Low < summary.LowestPrice {
			summary.LowestPrice = c.Low
		}
	}

	return summary
}

// ChartSummary headline price figures of a series.
type ChartSummary struct {
	LatestPrice  float64 `json:"latestPrice"`
	PriceChange  float64 `json:"priceChange"`
	HighestPrice float64 `json:"highestPrice"`
	LowestPrice  float64 `json:"lowestPrice"`
}

// PriceQuote most recent close for a symbol.
type PriceQuote struct {
	Symbol    string     `json:"symbol"`
	Price     float64    `json:"price"`
	Source    DataSource `json:"source"`
	Timestamp int64      `json:"timestamp"`
}
