package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

// MinTrendSamples is the shortest series a trend summary is computed for.
const MinTrendSamples = 50

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []float64, period int) ([]float64, error) {
	if len(closes) < period {
		return nil, errors.Errorf("not enough data points: need %d, got %d", period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)

	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes))), nil
}

// CalculateMACD calculates the MACD line and its signal line.
func CalculateMACD(closes []float64) ([]float64, []float64, error) {
	if len(closes) < 26 {
		return nil, nil, errors.Errorf("not enough data points for MACD: need at least 26, got %d", len(closes))
	}

	macd := trend.NewMacd[float64]()
	macdChan, signalChan := macd.Compute(helper.SliceToChan(closes))

	// both outputs must be consumed concurrently or the indicator blocks
	signalDone := make(chan []float64, 1)
	go func() {
		signalDone <- helper.ChanToSlice(signalChan)
	}()

	macdLine := helper.ChanToSlice(macdChan)
	signalLine := <-signalDone

	return macdLine, signalLine, nil
}

// TrendSummary condenses EMA20/EMA50/MACD of oldest-first closes. It reports
// false when the series is too short.
func TrendSummary(closes []float64) (domain.TrendSummary, bool) {
	if len(closes) < MinTrendSamples {
		return domain.TrendSummary{}, false
	}

	ema20, err := CalculateEMA(closes, 20)
	if err != nil || len(ema20) == 0 {
		return domain.TrendSummary{}, false
	}
	ema50, err := CalculateEMA(closes, 50)
	if err != nil || len(ema50) == 0 {
		return domain.TrendSummary{}, false
	}
	macd, signal, err := CalculateMACD(closes)
	if err != nil || len(macd) == 0 || len(signal) == 0 {
		return domain.TrendSummary{}, false
	}

	price := closes[len(closes)-1]
	lastEMA20 := ema20[len(ema20)-1]
	lastEMA50 := ema50[len(ema50)-1]

	return domain.TrendSummary{
		EMA20:      domain.Round2(lastEMA20),
		EMA50:      domain.Round2(lastEMA50),
		MACD:       domain.Round2(macd[len(macd)-1]),
		MACDSignal: domain.Round2(signal[len(signal)-1]),
		Trend:      determineTrendDirection(price, lastEMA20, lastEMA50),
	}, true
}

func determineTrendDirection(price, ema20, ema50 float64) domain.TrendDirection {
	if price > ema20 && ema20 > ema50 {
		return domain.TrendDirectionBullish
	} else if price < ema20 && ema20 < ema50 {
		return domain.TrendDirectionBearish
	}
	return domain.TrendDirectionNeutral
}
