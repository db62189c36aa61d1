package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditMetadata context stored next to every audit record.
type AuditMetadata struct {
	Timeframe       string              `json:"timeframe"`
	DataSource      DataSource          `json:"data_source"`
	RiskAssessment  RiskAssessment      `json:"risk_assessment"`
	Indicators      TechnicalIndicators `json:"indicators"`
	ExternalOpinion *ExternalOpinion    `json:"external_opinion,omitempty"`
}

// AuditRecord persisted trace of a completed analysis.
type AuditRecord struct {
	ID              string        `json:"id"`
	Timestamp       time.Time     `json:"ts"`
	Symbol          string        `json:"symbol"`
	Action          Action        `json:"action"`
	Confidence      float64       `json:"confidence"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	ModelsUsed      []string      `json:"models_used"`
	ExecutionTimeMs int64         `json:"execution_time_ms"`
	Metadata        AuditMetadata `json:"metadata"`
}

// NewAuditRecord builds the audit trace of an analysis result.
func NewAuditRecord(result *AnalysisResult, timestamp time.Time) AuditRecord {
	models := make([]string, len(result.ModelsUsed))
	for i, m := range result.ModelsUsed {
		// normalize model name by removing gpt://folder_id/ prefix
		models[i] = NormalizeModelName(m)
	}

	return AuditRecord{
		ID:              uuid.NewString(),
		Timestamp:       timestamp,
		Symbol:          result.Symbol,
		Action:          result.Action,
		Confidence:      result.Confidence,
		RiskLevel:       result.RiskLevel,
		ModelsUsed:      models,
		ExecutionTimeMs: result.ExecutionTimeMs,
		Metadata: AuditMetadata{
			Timeframe:       result.Timeframe,
			DataSource:      result.DataSource,
			RiskAssessment:  result.RiskAssessment,
			Indicators:      result.TechnicalIndicators,
			ExternalOpinion: result.ExternalOpinion,
		},
	}
}

// AuditRecordEntry bundles an audit record with its log index.
type AuditRecordEntry struct {
	Index  uint64
	Record AuditRecord
}
