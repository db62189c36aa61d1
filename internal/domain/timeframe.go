package domain

import "time"

// DefaultTimeframe is used when a request does not name one.
const DefaultTimeframe = "1d"

// TrendDirection qualitative direction of price action.
type TrendDirection string

const (
	TrendDirectionBullish TrendDirection = "bullish"
	TrendDirectionBearish TrendDirection = "bearish"
	TrendDirectionNeutral TrendDirection = "neutral"
)

// Title returns a human-readable representation.
func (t TrendDirection) Title() string {
	switch t {
	case TrendDirectionBullish:
		return "Bullish"
	case TrendDirectionBearish:
		return "Bearish"
	default:
		return "Neutral"
	}
}

// TimeframeDuration returns the wall-clock step between two candles of the timeframe.
// Unknown timeframes are treated as daily.
func TimeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "60m", "1h":
		return time.Hour
	case "1wk", "1w":
		return 7 * 24 * time.Hour
	case "1mo", "1mth":
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// IntradayMinutes reports the bar size in minutes for intraday timeframes.
func IntradayMinutes(timeframe string) (int, bool) {
	switch timeframe {
	case "1m":
		return 1, true
	case "5m":
		return 5, true
	case "15m":
		return 15, true
	case "30m":
		return 30, true
	case "60m", "1h":
		return 60, true
	default:
		return 0, false
	}
}

// IsWeekly reports whether the timeframe denotes weekly bars.
func IsWeekly(timeframe string) bool {
	return timeframe == "1wk" || timeframe == "1w"
}

// IsMonthly reports whether the timeframe denotes monthly bars.
func IsMonthly(timeframe string) bool {
	return timeframe == "1mo" || timeframe == "1mth"
}
