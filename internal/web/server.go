// Package web exposes the analysis service over HTTP and streams audit records over SSE.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/internal/domain"
	"github.com/vadiminshakov/marketsignal/internal/services/analysis"
)

const (
	decisionPollInterval = 2 * time.Second
	heartbeatInterval    = 30 * time.Second
	shutdownTimeout      = 5 * time.Second

	defaultCandleLimit = 100
	maxCandleLimit     = 1000
	defaultRecentLimit = 20
	maxRecentLimit     = 500
	maxBodyBytes       = 1 << 16
)

type analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

type marketReader interface {
	FetchHistorical(ctx context.Context, symbol, timeframe string, limit int) domain.MarketDataResult
	GetRealTimePrice(ctx context.Context, symbol string) domain.PriceQuote
}

type decisionStreamReader interface {
	EventsAfter(index uint64) ([]domain.AuditRecordEntry, error)
}

type recentDecisionReader interface {
	Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}

type requestObserver interface {
	ObserveHTTPRequest(route string, code int)
	ObserveCacheLookup(result string)
}

// Server exposes the HTTP API.
type Server struct {
	addr     string
	analyzer analyzer
	market   marketReader
	stream   decisionStreamReader
	recent   recentDecisionReader
	cache    ResponseCache
	cacheTTL time.Duration
	metrics  http.Handler
	observer requestObserver
	version  string
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithDecisionStream enables GET /ai/decisions/stream.
func WithDecisionStream(stream decisionStreamReader) Option {
	return func(s *Server) {
		s.stream = stream
	}
}

// WithRecentDecisions enables GET /ai/decisions/recent.
func WithRecentDecisions(recent recentDecisionReader) Option {
	return func(s *Server) {
		s.recent = recent
	}
}

// WithResponseCache caches market data and price responses for ttl.
func WithResponseCache(cache ResponseCache, ttl time.Duration) Option {
	return func(s *Server) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithMetrics serves handler on GET /metrics and reports requests to observer.
func WithMetrics(handler http.Handler, observer requestObserver) Option {
	return func(s *Server) {
		s.metrics = handler
		s.observer = observer
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithClock replaces the clock used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a new web server instance.
func NewServer(addr string, analyzer analyzer, market marketReader, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		analyzer: analyzer,
		market:   market,
		cacheTTL: DefaultCacheTTL,
		version:  "dev",
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /analyze", s.handleAnalyze)
	s.route(mux, "GET /market-data/{symbol}", s.cached(s.handleMarketData))
	s.route(mux, "GET /price/{symbol}", s.cached(s.handlePrice))
	s.route(mux, "GET /symbols", s.handleSymbols)
	s.route(mux, "GET /ai/decisions/stream", s.handleAIDecisionStream)
	s.route(mux, "GET /ai/decisions/recent", s.handleRecentDecisions)
	s.route(mux, "GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}

	return nil
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		if s.observer != nil {
			s.observer.ObserveHTTPRequest(pattern, sw.code)
		}
	})
}

type analyzeRequest struct {
	Symbol       string `json:"symbol"`
	Timeframe    string `json:"timeframe"`
	IncludeChart *bool  `json:"includeChart"`
}

// includeOpinion defaults to requesting the external opinion.
func (r analyzeRequest) includeOpinion() bool {
	return r.IncludeChart == nil || *r.IncludeChart
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), domain.AnalysisRequest{
		Symbol:                 body.Symbol,
		Timeframe:              body.Timeframe,
		IncludeExternalOpinion: body.includeOpinion(),
	})
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidRequest) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("analysis failed", zap.String("symbol", body.Symbol), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

type marketDataResponse struct {
	Success     bool              `json:"success"`
	Symbol      string            `json:"symbol"`
	DataPoints  int               `json:"data_points"`
	Timeframe   string            `json:"timeframe"`
	LatestPrice float64           `json:"latest_price"`
	DataSource  domain.DataSource `json:"data_source"`
	Provider    string            `json:"provider"`
	Timestamp   int64             `json:"timestamp"`
	Candles     []domain.Candle   `json:"candles"`
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	req, err := analysis.NormalizeRequest(domain.AnalysisRequest{
		Symbol:    r.PathValue("symbol"),
		Timeframe: r.URL.Query().Get("timeframe"),
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultCandleLimit, maxCandleLimit)

	data := s.market.FetchHistorical(r.Context(), req.Symbol, req.Timeframe, limit)
	s.writeJSON(w, http.StatusOK, marketDataResponse{
		Success:     true,
		Symbol:      req.Symbol,
		DataPoints:  len(data.Candles),
		Timeframe:   req.Timeframe,
		LatestPrice: data.LatestPrice,
		DataSource:  data.Source,
		Provider:    data.Provider,
		Timestamp:   data.Timestamp,
		Candles:     data.Candles,
	})
}

type priceResponse struct {
	Success bool `json:"success"`
	domain.PriceQuote
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	req, err := analysis.NormalizeRequest(domain.AnalysisRequest{Symbol: r.PathValue("symbol")})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote := s.market.GetRealTimePrice(r.Context(), req.Symbol)
	s.writeJSON(w, http.StatusOK, priceResponse{Success: true, PriceQuote: quote})
}

type symbolsResponse struct {
	Success    bool                 `json:"success"`
	Symbols    domain.SymbolCatalog `json:"symbols"`
	TotalCount int                  `json:"total_count"`
	Timestamp  string               `json:"timestamp"`
}

func (s *Server) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	catalog := domain.SupportedSymbols()
	s.writeJSON(w, http.StatusOK, symbolsResponse{
		Success:    true,
		Symbols:    catalog,
		TotalCount: catalog.Total(),
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Version:   s.version,
	})
}

type recentResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	Records []domain.AuditRecord `json:"records"`
}

func (s *Server) handleRecentDecisions(w http.ResponseWriter, r *http.Request) {
	if s.recent == nil {
		s.writeError(w, http.StatusServiceUnavailable, "audit store not available")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultRecentLimit, maxRecentLimit)

	records, err := s.recent.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("load recent decisions", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load decisions")
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}

	s.writeJSON(w, http.StatusOK, recentResponse{Success: true, Count: len(records), Records: records})
}

func (s *Server) handleAIDecisionStream(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "AI decision store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(decisionPollInterval)
	defer pollTicker.Stop()

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	sendDecisions := func() error {
		records, err := s.stream.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Record)
			if err != nil {
				return errors.Wrapf(err, "marshal record %d", record.Index)
			}
			fmt.Fprintf(w, "event: ai_decision\n")
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendDecisions(); err != nil {
		http.Error(w, "failed to load AI decisions", http.StatusInternalServerError)
		s.logger.Error("AI decision stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendDecisions(); err != nil {
				s.logger.Warn("AI decision stream poll", zap.Error(err))
			}
		}
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

// parseLastEventID resumes a stream from the Last-Event-ID header, falling back to
// the last_event_id query parameter. Malformed values restart from the beginning.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseLimit returns def for a missing, malformed or non-positive value.
func parseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
