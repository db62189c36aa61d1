package domain

// TechnicalIndicators snapshot of the derived signals, rounded to two decimals.
type TechnicalIndicators struct {
	SMAShort   float64 `json:"sma_short"`
	SMALong    float64 `json:"sma_long"`
	RSI        float64 `json:"rsi"`
	Volatility float64 `json:"volatility"`
	Momentum   float64 `json:"momentum"`
}

// Decision rule-based recommendation derived from indicators.
type Decision struct {
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	RiskLevel  RiskLevel `json:"risk_level"`
}

// TrendSummary moving-average context used to brief the external analyst.
type TrendSummary struct {
	EMA20      float64        `json:"ema20"`
	EMA50      float64        `json:"ema50"`
	MACD       float64        `json:"macd"`
	MACDSignal float64        `json:"macd_signal"`
	Trend      TrendDirection `json:"trend"`
}
