package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F55385"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Width(14)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(warning).Bold(true)
)

var actionColors = map[domain.Action]lipgloss.TerminalColor{
	domain.ActionBuy:  special,
	domain.ActionSell: warning,
	domain.ActionHold: highlight,
}

func renderReport(r *domain.AnalysisResult) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s · %s", r.Symbol, r.Timeframe)))
	b.WriteString("\n")

	color, ok := actionColors[r.Action]
	if !ok {
		color = subtle
	}
	action := lipgloss.NewStyle().Bold(true).Foreground(color).Render(r.Action.Upper())
	b.WriteString(boxStyle.Render(strings.Join([]string{
		row("Signal", action),
		row("Confidence", fmt.Sprintf("%.0f%%", r.Confidence*100)),
		row("Risk", string(r.RiskLevel)),
		row("Data", string(r.DataSource)),
		row("Models", strings.Join(r.ModelsUsed, ", ")),
	}, "\n")))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Reasoning"))
	b.WriteString("\n")
	b.WriteString(r.Reasoning)
	b.WriteString("\n")

	ind := r.TechnicalIndicators
	b.WriteString(sectionStyle.Render("Indicators"))
	b.WriteString("\n")
	b.WriteString(strings.Join([]string{
		row("SMA 20", fmt.Sprintf("%.2f", ind.SMAShort)),
		row("SMA 50", fmt.Sprintf("%.2f", ind.SMALong)),
		row("RSI 14", fmt.Sprintf("%.2f", ind.RSI)),
		row("Volatility", fmt.Sprintf("%.2f%%", ind.Volatility)),
		row("Momentum", fmt.Sprintf("%+.2f%%", ind.Momentum)),
	}, "\n"))
	b.WriteString("\n")

	if op := r.ExternalOpinion; op != nil {
		b.WriteString(sectionStyle.Render("External opinion · " + op.Model))
		b.WriteString("\n")
		if op.TradingSignal != "" {
			b.WriteString(row("Signal", op.TradingSignal.Upper()))
			b.WriteString("\n")
		}
		if op.Confidence != nil {
			b.WriteString(row("Confidence", fmt.Sprintf("%.0f%%", *op.Confidence)))
			b.WriteString("\n")
		}
		for _, insight := range op.KeyInsights {
			b.WriteString("• " + insight + "\n")
		}
	}

	b.WriteString(lipgloss.NewStyle().Foreground(subtle).MarginTop(1).Render(
		fmt.Sprintf("%s · %s · %dms", r.RiskAssessment.Notes, r.Timestamp, r.ExecutionTimeMs)))

	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}
