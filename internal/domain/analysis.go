package domain

// Base models always contributing to a recommendation.
const (
	ModelTechnicalSMA    = "technical_sma"
	ModelRSI             = "rsi"
	ModelVolatilityModel = "volatility_model"
)

// BaseModelsUsed returns a fresh copy of the models every analysis relies on.
func BaseModelsUsed() []string {
	return []string{ModelTechnicalSMA, ModelRSI, ModelVolatilityModel}
}

// AnalysisRequest input of one analysis.
type AnalysisRequest struct {
	Symbol                 string
	Timeframe              string
	IncludeExternalOpinion bool
}

// ExternalOpinion narrative produced by the external AI analyst.
type ExternalOpinion struct {
	Model         string   `json:"model"`
	Analysis      string   `json:"analysis"`
	TradingSignal Action   `json:"trading_signal,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	KeyInsights   []string `json:"key_insights,omitempty"`
}

// RiskAssessment qualitative view of the current risk.
type RiskAssessment struct {
	Volatility  float64 `json:"volatility"`
	RecentTrend float64 `json:"recentTrend"`
	LastUpdated int64   `json:"lastUpdated"`
	Notes       string  `json:"notes"`
}

// AnalysisResult full outcome of one analysis.
type AnalysisResult struct {
	Success             bool                `json:"success"`
	Symbol              string              `json:"symbol"`
	Timeframe           string              `json:"timeframe"`
	Action              Action              `json:"action"`
	Confidence          float64             `json:"confidence"`
	Reasoning           string              `json:"reasoning"`
	RiskLevel           RiskLevel           `json:"risk_level"`
	ModelsUsed          []string            `json:"models_used"`
	TechnicalIndicators TechnicalIndicators `json:"technical_indicators"`
	ExternalOpinion     *ExternalOpinion    `json:"external_opinion,omitempty"`
	RiskAssessment      RiskAssessment      `json:"risk_assessment"`
	DataSource          DataSource          `json:"data_source"`
	Timestamp           string              `json:"timestamp"`
	ExecutionTimeMs     int64               `json:"execution_time_ms"`
}
