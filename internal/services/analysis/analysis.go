// Package analysis orchestrates one analysis: fetch candles, derive indicators,
// decide, optionally consult the external analyst and record an audit trace.
package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/internal/domain"
	"github.com/vadiminshakov/marketsignal/internal/services/decision"
	"github.com/vadiminshakov/marketsignal/internal/services/market/indicators"
	"github.com/vadiminshakov/marketsignal/internal/services/promptbuilder"
)

const (
	defaultWindow         = 120
	defaultOpinionTimeout = 30 * time.Second
	defaultAuditTimeout   = 5 * time.Second
	maxSymbolLength       = 32

	notesHighVolatility = "Price action is highly volatile."
	notesManageable     = "Volatility is manageable."
)

// ErrInvalidRequest the analysis request failed validation.
var ErrInvalidRequest = errors.New("invalid analysis request")

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9./_-]+$`)

type marketDataFetcher interface {
	FetchHistorical(ctx context.Context, symbol, timeframe string, limit int) domain.MarketDataResult
}

type chartAnalyst interface {
	Model() string
	AnalyzeChart(ctx context.Context, in promptbuilder.ChartAnalysisInput) (*domain.ExternalOpinion, error)
}

type auditSink interface {
	Save(ctx context.Context, record domain.AuditRecord) error
}

type analysisObserver interface {
	ObserveAnalysis(action string, duration time.Duration)
	ObserveOpinion(outcome string)
	ObserveAuditFailure()
}

// Service runs analyses. It holds no per-request state and is safe for concurrent use.
type Service struct {
	market         marketDataFetcher
	analyst        chartAnalyst
	audit          auditSink
	observer       analysisObserver
	logger         *zap.Logger
	window         int
	opinionTimeout time.Duration
	auditTimeout   time.Duration
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithChartAnalyst enables external opinions.
func WithChartAnalyst(analyst chartAnalyst) Option {
	return func(s *Service) {
		s.analyst = analyst
	}
}

// WithAuditSink records every completed analysis.
func WithAuditSink(sink auditSink) Option {
	return func(s *Service) {
		s.audit = sink
	}
}

// WithObserver reports analysis metrics.
func WithObserver(observer analysisObserver) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithWindow sets how many candles each analysis fetches.
func WithWindow(window int) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithOpinionTimeout bounds the external analyst call.
func WithOpinionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.opinionTimeout = d
		}
	}
}

// WithAuditTimeout bounds the audit write.
func WithAuditTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.auditTimeout = d
		}
	}
}

// WithClock replaces the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an analysis service.
func NewService(market marketDataFetcher, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		market:         market,
		logger:         logger,
		window:         defaultWindow,
		opinionTimeout: defaultOpinionTimeout,
		auditTimeout:   defaultAuditTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NormalizeRequest trims and validates the request, applying the default timeframe.
func NormalizeRequest(req domain.AnalysisRequest) (domain.AnalysisRequest, error) {
	req.Symbol = strings.TrimSpace(req.Symbol)
	req.Timeframe = strings.TrimSpace(req.Timeframe)

	switch {
	case req.Symbol == "":
		return req, errors.Wrap(ErrInvalidRequest, "symbol is required")
	case len(req.Symbol) > maxSymbolLength:
		return req, errors.Wrapf(ErrInvalidRequest, "symbol longer than %d characters", maxSymbolLength)
	case !symbolPattern.MatchString(req.Symbol):
		return req, errors.Wrapf(ErrInvalidRequest, "symbol %q contains unsupported characters", req.Symbol)
	}

	if req.Timeframe == "" {
		req.Timeframe = domain.DefaultTimeframe
	}

	return req, nil
}

// Analyze produces a recommendation for the symbol. Only validation errors are returned;
// provider, analyst and audit failures degrade the result instead.
func (s *Service) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	started := time.Now()

	req, err := NormalizeRequest(req)
	if err != nil {
		return nil, err
	}

	data := s.market.FetchHistorical(ctx, req.Symbol, req.Timeframe, s.window)
	closes := domain.ChronologicalCloses(data.Candles)
	ind := indicators.Compute(closes)
	d := decision.Decide(ind, data.LatestPrice)

	result := &domain.AnalysisResult{
		Success:             true,
		Symbol:              req.Symbol,
		Timeframe:           req.Timeframe,
		Action:              d.Action,
		Confidence:          d.Confidence,
		Reasoning:           d.Reasoning,
		RiskLevel:           d.RiskLevel,
		ModelsUsed:          domain.BaseModelsUsed(),
		TechnicalIndicators: ind,
		RiskAssessment:      riskAssessment(ind, data.Timestamp),
		DataSource:          data.Source,
	}

	if req.IncludeExternalOpinion && s.analyst != nil {
		if opinion := s.externalOpinion(ctx, req, data, closes, ind); opinion != nil {
			result.ExternalOpinion = opinion
			result.ModelsUsed = append(result.ModelsUsed, s.analyst.Model())
		}
	}

	finished := s.now()
	result.Timestamp = finished.UTC().Format(time.RFC3339)
	result.ExecutionTimeMs = time.Since(started).Milliseconds()

	s.record(ctx, result, finished)

	if s.observer != nil {
		s.observer.ObserveAnalysis(string(result.Action), time.Since(started))
	}

	s.logger.Info("analysis completed",
		zap.String("symbol", result.Symbol),
		zap.String("timeframe", result.Timeframe),
		zap.String("action", string(result.Action)),
		zap.Float64("confidence", result.Confidence),
		zap.String("data_source", string(result.DataSource)),
		zap.Int64("execution_time_ms", result.ExecutionTimeMs),
	)

	return result, nil
}

func (s *Service) externalOpinion(
	ctx context.Context,
	req domain.AnalysisRequest,
	data domain.MarketDataResult,
	closes []float64,
	ind domain.TechnicalIndicators,
) *domain.ExternalOpinion {
	in := promptbuilder.ChartAnalysisInput{
		Symbol:        req.Symbol,
		Timeframe:     req.Timeframe,
		Chart:         data.ChartSummary(),
		Indicators:    ind,
		RecentCandles: data.Candles,
	}
	if trend, ok := indicators.TrendSummary(closes); ok {
		in.Trend = &trend
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.opinionTimeout)
	defer cancel()

	opinion, err := s.analyst.AnalyzeChart(ctxWithTimeout, in)
	if err == nil && opinion == nil {
		err = errors.New("analyst returned no opinion")
	}
	if err != nil {
		s.logger.Warn("external opinion unavailable",
			zap.String("symbol", req.Symbol),
			zap.String("model", s.analyst.Model()),
			zap.Error(err),
		)
		s.observeOpinion("failure")
		return nil
	}

	s.observeOpinion("success")

	return opinion
}

func (s *Service) record(ctx context.Context, result *domain.AnalysisResult, at time.Time) {
	if s.audit == nil {
		return
	}

	// the audit write outlives a cancelled request but stays bounded
	ctxWithTimeout, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	defer cancel()

	if err := s.audit.Save(ctxWithTimeout, domain.NewAuditRecord(result, at)); err != nil {
		s.logger.Error("failed to record analysis audit",
			zap.String("symbol", result.Symbol),
			zap.Error(err),
		)
		if s.observer != nil {
			s.observer.ObserveAuditFailure()
		}
	}
}

func (s *Service) observeOpinion(outcome string) {
	if s.observer != nil {
		s.observer.ObserveOpinion(outcome)
	}
}

func riskAssessment(ind domain.TechnicalIndicators, lastUpdated int64) domain.RiskAssessment {
	notes := notesManageable
	if ind.Volatility > decision.HighVolatility {
		notes = notesHighVolatility
	}

	return domain.RiskAssessment{
		Volatility:  ind.Volatility,
		RecentTrend: ind.Momentum,
		LastUpdated: lastUpdated,
		Notes:       notes,
	}
}

// Summary renders a one-line human description of the result.
func Summary(result *domain.AnalysisResult) string {
	return fmt.Sprintf("%s %s: %s (confidence %.0f%%, %s risk)",
		result.Symbol, result.Timeframe, result.Action.Upper(), result.Confidence*100, result.RiskLevel)
}
