// Package metrics exposes service counters and histograms to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketsignal"

// Metrics holds all collectors on a private registry. Methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal    *prometheus.CounterVec // labels: action
	AnalysisDuration prometheus.Histogram
	MarketDataTotal  *prometheus.CounterVec // labels: source
	OpinionsTotal    *prometheus.CounterVec // labels: outcome
	AuditFailures    prometheus.Counter
	HTTPRequests     *prometheus.CounterVec // labels: route, code
	CacheLookups     *prometheus.CounterVec // labels: result
}

// New registers and returns all metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by recommended action",
		}, []string{"action"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis latency",
			Buckets:   prometheus.DefBuckets,
		}),
		MarketDataTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_data_fetches_total",
			Help:      "Historical data fetches by data source (provider or synthetic)",
		}, []string{"source"}),
		OpinionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_opinions_total",
			Help:      "External analyst calls by outcome",
		}, []string{"outcome"}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Audit records that could not be written",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_lookups_total",
			Help:      "Response cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.MarketDataTotal,
		m.OpinionsTotal,
		m.AuditFailures,
		m.HTTPRequests,
		m.CacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAnalysis counts a completed analysis and its latency.
func (m *Metrics) ObserveAnalysis(action string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(action).Inc()
	m.AnalysisDuration.Observe(duration.Seconds())
}

// ObserveMarketData counts a historical data fetch by source.
func (m *Metrics) ObserveMarketData(source string) {
	if m == nil {
		return
	}
	m.MarketDataTotal.WithLabelValues(source).Inc()
}

// ObserveOpinion counts an external analyst call by outcome.
func (m *Metrics) ObserveOpinion(outcome string) {
	if m == nil {
		return
	}
	m.OpinionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAuditFailure counts a failed audit write.
func (m *Metrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

// ObserveHTTPRequest counts a served HTTP request.
func (m *Metrics) ObserveHTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, http.StatusText(code)).Inc()
}

// ObserveCacheLookup counts a response cache lookup.
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
