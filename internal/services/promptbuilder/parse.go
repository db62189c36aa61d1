package promptbuilder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

const (
	maxInsights       = 5
	defaultConfidence = 50
)

var (
	confidencePattern = regexp.MustCompile(`(?i)confidence[:\s]+(\d+)%?`)
	bulletPattern     = regexp.MustCompile(`(?m)^[ \t]*[-•*][ \t]+(.+?)[ \t]*$`)
)

// ParsedOpinion structured view of the analyst's free-text reply.
type ParsedOpinion struct {
	Signal     domain.Action
	Confidence float64
	Insights   []string
}

// ParseAnalysis extracts signal, confidence (0-100) and up to five bullet insights.
// Buy keywords win over sell keywords; missing confidence defaults to 50.
func ParseAnalysis(text string) ParsedOpinion {
	lower := strings.ToLower(text)

	opinion := ParsedOpinion{
		Signal:     domain.ActionHold,
		Confidence: defaultConfidence,
		Insights:   []string{},
	}

	switch {
	case strings.Contains(lower, "buy") || strings.Contains(lower, "bullish"):
		opinion.Signal = domain.ActionBuy
	case strings.Contains(lower, "sell") || strings.Contains(lower, "bearish"):
		opinion.Signal = domain.ActionSell
	}

	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			opinion.Confidence = float64(min(v, 100))
		}
	}

	for _, m := range bulletPattern.FindAllStringSubmatch(text, -1) {
		if len(opinion.Insights) == maxInsights {
			break
		}
		if insight := strings.TrimSpace(m[1]); insight != "" {
			opinion.Insights = append(opinion.Insights, insight)
		}
	}

	return opinion
}
