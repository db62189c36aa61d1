package domain

import "strings"

// Action recommended trading action.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// String returns the wire representation of the action.
func (a Action) String() string {
	return string(a)
}

// Upper returns the signal form used in reports (BUY, SELL, HOLD).
func (a Action) Upper() string {
	return strings.ToUpper(string(a))
}

// RiskLevel coarse volatility bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)
