// Package indicators derives technical indicators from chronological close prices.
package indicators

import (
	"math"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

const (
	ShortSMAPeriod   = 20
	LongSMAPeriod    = 50
	RSIPeriod        = 14
	MomentumLookback = 10

	neutralRSI     = 50
	maxRSI         = 100
	tradingDays    = 252
	percentScaling = 100
)

// SMA returns the mean of the last period values. With fewer values than the
// period it returns the last value, or 0 for an empty series.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period <= 0 || len(values) < period {
		return values[len(values)-1]
	}

	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}

	return sum / float64(period)
}

// RSI returns the relative strength index over the last period deltas.
// Series of period values or fewer yield the neutral 50. Windows with gains and
// no losses saturate at 100; a zero average loss is otherwise replaced by 1, so
// flat windows read 0.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) <= period {
		return neutralRSI
	}

	var gains, losses float64
	for i := len(values) - period; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta >= 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	if losses == 0 && gains > 0 {
		return maxRSI
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		avgLoss = 1
	}
	rs := avgGain / avgLoss

	return maxRSI - maxRSI/(1+rs)
}

// Volatility returns the annualized population standard deviation of simple
// returns, in percent. A zero previous value contributes a zero return.
func Volatility(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns[i-1] = (values[i] - values[i-1]) / values[i-1]
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(tradingDays) * percentScaling
}

// Momentum returns the percent change between the latest value and the value
// lookback+1 positions from the end. Short series and a zero base yield 0.
func Momentum(values []float64, lookback int) float64 {
	if lookback < 0 || len(values) <= lookback {
		return 0
	}

	base := values[len(values)-lookback-1]
	if base == 0 {
		return 0
	}

	return (values[len(values)-1] - base) / base * percentScaling
}

// Compute derives the indicator snapshot from oldest-first closes.
func Compute(closes []float64) domain.TechnicalIndicators {
	return domain.TechnicalIndicators{
		SMAShort:   domain.Round2(SMA(closes, ShortSMAPeriod)),
		SMALong:    domain.Round2(SMA(closes, LongSMAPeriod)),
		RSI:        domain.Round2(RSI(closes, RSIPeriod)),
		Volatility: domain.Round2(Volatility(closes)),
		Momentum:   domain.Round2(Momentum(closes, MomentumLookback)),
	}
}
