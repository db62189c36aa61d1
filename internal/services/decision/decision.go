// Package decision turns technical indicators into a rule-based recommendation.
package decision

import (
	"math"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

const (
	crossoverThreshold = 0.5
	overboughtRSI      = 70
	oversoldRSI        = 30
	minConfidence      = 0.1
	maxConfidence      = 0.95

	// HighVolatility annualized volatility above which risk is high.
	HighVolatility = 35
	// MediumVolatility annualized volatility above which risk is medium.
	MediumVolatility = 20
)

const (
	ReasonNeutral    = "Moving averages are aligned, suggesting neutral momentum."
	ReasonBullish    = "Short-term momentum is above long-term trend, indicating bullish sentiment."
	ReasonBearish    = "Short-term momentum has crossed below long-term trend, signalling weakness."
	ReasonOverbought = "RSI indicates overbought conditions; a pullback is likely."
	ReasonOversold   = "RSI indicates oversold conditions; a rebound is likely."
)

// Decide derives action, confidence, reasoning and risk level. RSI extremes
// override the moving-average crossover; confidence always reflects the
// crossover spread relative to price.
func Decide(ind domain.TechnicalIndicators, latestPrice float64) domain.Decision {
	diff := ind.SMAShort - ind.SMALong

	d := domain.Decision{
		Action:     domain.ActionHold,
		Reasoning:  ReasonNeutral,
		Confidence: math.Abs(diff) / math.Max(latestPrice, 1),
	}

	switch {
	case diff > crossoverThreshold:
		d.Action = domain.ActionBuy
		d.Reasoning = ReasonBullish
	case diff < -crossoverThreshold:
		d.Action = domain.ActionSell
		d.Reasoning = ReasonBearish
	}

	switch {
	case ind.RSI > overboughtRSI:
		d.Action = domain.ActionSell
		d.Reasoning = ReasonOverbought
	case ind.RSI < oversoldRSI:
		d.Action = domain.ActionBuy
		d.Reasoning = ReasonOversold
	}

	d.RiskLevel = RiskLevel(ind.Volatility)
	d.Confidence = domain.Round2(math.Min(math.Max(d.Confidence, minConfidence), maxConfidence))

	return d
}

// RiskLevel buckets annualized volatility.
func RiskLevel(volatility float64) domain.RiskLevel {
	switch {
	case volatility > HighVolatility:
		return domain.RiskHigh
	case volatility > MediumVolatility:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
