// Package promptbuilder formats market data and indicators into prompts for the
// external analyst LLM and extracts structured signals from its free-text reply.
package promptbuilder

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

const recentCandlesLimit = 20

// ChartAnalysisInput everything the analyst is briefed with.
type ChartAnalysisInput struct {
	Symbol     string
	Timeframe  string
	Chart      domain.ChartSummary
	Indicators domain.TechnicalIndicators
	// Trend is nil when the series is too short for EMA/MACD.
	Trend *domain.TrendSummary
	// RecentCandles newest first; at most the last 20 are rendered.
	RecentCandles []domain.Candle
}

// PromptBuilder constructs prompts for the LLM
type PromptBuilder struct {
	logger *zap.Logger
}

// NewPromptBuilder creates a new PromptBuilder instance
func NewPromptBuilder(logger *zap.Logger) *PromptBuilder {
	return &PromptBuilder{logger: logger}
}

// BuildUserPrompt constructs the complete user prompt
func (pb *PromptBuilder) BuildUserPrompt(in ChartAnalysisInput) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Market Analysis for %s (%s)\n\n", in.Symbol, in.Timeframe))

	sb.WriteString(pb.formatChartSummary(in.Chart))
	sb.WriteString(pb.formatIndicators(in.Indicators))

	if in.Trend != nil {
		sb.WriteString(pb.formatTrend(*in.Trend))
	}

	if len(in.RecentCandles) > 0 {
		sb.WriteString(pb.formatRecentData(in.RecentCandles, recentCandlesLimit))
	}

	sb.WriteString("## Instructions\n\n")
	sb.WriteString("Please provide:\n")
	sb.WriteString("1. Trend analysis\n")
	sb.WriteString("2. Trading signal (BUY/SELL/HOLD) with confidence level (0-100%)\n")
	sb.WriteString("3. Key insights (3-5 bullet points)\n")
	sb.WriteString("4. Risk assessment\n")

	prompt := sb.String()
	pb.logger.Debug("built analyst prompt",
		zap.String("symbol", in.Symbol),
		zap.Int("length", len(prompt)),
	)

	return prompt
}

func (pb *PromptBuilder) formatChartSummary(chart domain.ChartSummary) string {
	var sb strings.Builder

	sb.WriteString("## Chart Summary\n\n")
	sb.WriteString(fmt.Sprintf("**Latest Price:** %s\n", price(chart.LatestPrice)))
	sb.WriteString(fmt.Sprintf("**Price Change:** %s\n", price(chart.PriceChange)))
	sb.WriteString(fmt.Sprintf("**Highest Price:** %s\n", price(chart.HighestPrice)))
	sb.WriteString(fmt.Sprintf("**Lowest Price:** %s\n\n", price(chart.LowestPrice)))

	return sb.String()
}

func (pb *PromptBuilder) formatIndicators(ind domain.TechnicalIndicators) string {
	var sb strings.Builder

	sb.WriteString("## Technical Indicators\n\n")
	sb.WriteString(fmt.Sprintf("- SMA20: %s\n", price(ind.SMAShort)))
	sb.WriteString(fmt.Sprintf("- SMA50: %s\n", price(ind.SMALong)))
	sb.WriteString(fmt.Sprintf("- RSI14: %.2f\n", ind.RSI))
	sb.WriteString(fmt.Sprintf("- Volatility: %.2f%%\n", ind.Volatility))
	sb.WriteString(fmt.Sprintf("- Momentum: %.2f%%\n\n", ind.Momentum))

	return sb.String()
}

func (pb *PromptBuilder) formatTrend(trend domain.TrendSummary) string {
	var sb strings.Builder

	sb.WriteString("## Trend Context\n\n")
	sb.WriteString(fmt.Sprintf("- Trend: %s\n", trend.Trend.Title()))
	sb.WriteString(fmt.Sprintf("- EMA20: %s\n", price(trend.EMA20)))
	sb.WriteString(fmt.Sprintf("- EMA50: %s\n", price(trend.EMA50)))
	sb.WriteString(fmt.Sprintf("- MACD: %.4f (signal %.4f)\n\n", trend.MACD, trend.MACDSignal))

	return sb.String()
}

// formatRecentData renders the last candles oldest to newest in a compact table
func (pb *PromptBuilder) formatRecentData(candles []domain.Candle, limit int) string {
	var sb strings.Builder

	if len(candles) > limit {
		candles = candles[:limit]
	}

	sb.WriteString(fmt.Sprintf("## Recent Market Data (Last %d Candles)\n\n", len(candles)))
	sb.WriteString("```\n")
	sb.WriteString("Time                     | Open     | High     | Low      | Close    | Volume\n")
	sb.WriteString("-------------------------|----------|----------|----------|----------|----------\n")

	for i := len(candles) - 1; i >= 0; i-- {
		c := candles[i]
		sb.WriteString(fmt.Sprintf("%-24s | %8.2f | %8.2f | %8.2f | %8.2f | %8d\n",
			c.Time, c.Open, c.High, c.Low, c.Close, c.Volume,
		))
	}

	sb.WriteString("```\n\n")

	return sb.String()
}

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
