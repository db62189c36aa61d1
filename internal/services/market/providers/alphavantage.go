// Package providers fetches historical candles from upstream market data
// providers and normalizes them to newest-first domain candles.
package providers

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/marketsignal/internal/domain"
)

// AlphaVantageName identifies the Alpha Vantage provider.
const AlphaVantageName = "alphavantage"

// DefaultAlphaVantageURL is the public Alpha Vantage query endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

const (
	seriesKeyMarker   = "Time Series"
	maxErrorBodyBytes = 256
)

var (
	// ErrNoSeries the payload carries no time series object.
	ErrNoSeries = errors.New("no time series in provider payload")
	// ErrProviderRejected the provider answered with an error, throttling or informational payload.
	ErrProviderRejected = errors.New("provider rejected request")
	// ErrMalformedPayload the payload is not valid JSON.
	ErrMalformedPayload = errors.New("malformed provider payload")
)

// rejectionKeys top-level keys Alpha Vantage uses instead of a series.
var rejectionKeys = []string{"Error Message", "Note", "Information"}

// Query Alpha Vantage request parameters derived from a timeframe.
type Query struct {
	Function   string
	Interval   string
	OutputSize string
}

// alphaVantageIntraday intraday timeframes and their interval parameter.
// 1h is not among them and requests daily bars.
var alphaVantageIntraday = map[string]string{
	"1m":  "1min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"60m": "60min",
}

// BuildQuery maps a timeframe to Alpha Vantage request parameters.
func BuildQuery(timeframe string) Query {
	if interval, ok := alphaVantageIntraday[timeframe]; ok {
		return Query{
			Function:   "TIME_SERIES_INTRADAY",
			Interval:   interval,
			OutputSize: "compact",
		}
	}

	switch {
	case domain.IsWeekly(timeframe):
		return Query{Function: "TIME_SERIES_WEEKLY"}
	case domain.IsMonthly(timeframe):
		return Query{Function: "TIME_SERIES_MONTHLY"}
	default:
		return Query{Function: "TIME_SERIES_DAILY_ADJUSTED"}
	}
}

// Values encodes the query for a symbol.
func (q Query) Values(symbol, apiKey string) url.Values {
	v := url.Values{}
	v.Set("function", q.Function)
	v.Set("symbol", symbol)
	v.Set("apikey", apiKey)
	if q.Interval != "" {
		v.Set("interval", q.Interval)
	}
	if q.OutputSize != "" {
		v.Set("outputsize", q.OutputSize)
	}

	return v
}

// AlphaVantageProvider fetches candles from the Alpha Vantage HTTP API.
type AlphaVantageProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// AlphaVantageOption configures an AlphaVantageProvider.
type AlphaVantageOption func(*AlphaVantageProvider)

// WithBaseURL overrides the query endpoint.
func WithBaseURL(baseURL string) AlphaVantageOption {
	return func(p *AlphaVantageProvider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) AlphaVantageOption {
	return func(p *AlphaVantageProvider) {
		p.httpClient = client
	}
}

// WithRateLimit caps outbound requests to perMinute with the given burst.
// Non-positive perMinute disables limiting.
func WithRateLimit(perMinute, burst int) AlphaVantageOption {
	return func(p *AlphaVantageProvider) {
		if perMinute <= 0 {
			p.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// NewAlphaVantageProvider creates a provider using the given API key.
func NewAlphaVantageProvider(apiKey string, opts ...AlphaVantageOption) *AlphaVantageProvider {
	p := &AlphaVantageProvider{
		baseURL:    DefaultAlphaVantageURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the provider identifier.
func (p *AlphaVantageProvider) Name() string {
	return AlphaVantageName
}

// GetCandles fetches up to limit candles, newest first.
func (p *AlphaVantageProvider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter wait")
		}
	}

	query := BuildQuery(timeframe)
	endpoint := p.baseURL + "?" + query.Values(symbol, p.apiKey).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s for %s", query.Function, symbol)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("alphavantage returned status %d: %s", resp.StatusCode, truncate(string(body), maxErrorBodyBytes))
	}

	candles, err := ParseTimeSeries(body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s for %s", query.Function, symbol)
	}

	if limit >= 0 && len(candles) > limit {
		candles = candles[:limit]
	}

	return candles, nil
}

// ParseTimeSeries extracts candles, newest first, from an Alpha Vantage payload.
// Entries lacking a parseable open, high, low or close are skipped.
func ParseTimeSeries(payload []byte) ([]domain.Candle, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrMalformedPayload
	}

	root := gjson.ParseBytes(payload)
	for _, key := range rejectionKeys {
		if msg := root.Get(key); msg.Exists() {
			return nil, errors.Wrap(ErrProviderRejected, truncate(msg.String(), maxErrorBodyBytes))
		}
	}

	var series gjson.Result
	root.ForEach(func(key, value gjson.Result) bool {
		if strings.Contains(key.String(), seriesKeyMarker) {
			series = value
			return false
		}
		return true
	})
	if !series.Exists() || !series.IsObject() {
		return nil, ErrNoSeries
	}

	candles := make([]domain.Candle, 0)
	series.ForEach(func(ts, entry gjson.Result) bool {
		if c, ok := parseEntry(ts.String(), entry); ok {
			candles = append(candles, c)
		}
		return true
	})

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time > candles[j].Time
	})

	return candles, nil
}

func parseEntry(ts string, entry gjson.Result) (domain.Candle, bool) {
	fields := make(map[string]gjson.Result)
	entry.ForEach(func(key, value gjson.Result) bool {
		fields[strings.ToLower(key.String())] = value
		return true
	})

	open, ok := number(fields, "1. open")
	if !ok {
		return domain.Candle{}, false
	}
	high, ok := number(fields, "2. high")
	if !ok {
		return domain.Candle{}, false
	}
	low, ok := number(fields, "3. low")
	if !ok {
		return domain.Candle{}, false
	}
	closePrice, ok := number(fields, "4. close")
	if !ok {
		return domain.Candle{}, false
	}

	var volume int64
	for _, key := range []string{"5. volume", "6. volume"} {
		if v, ok := number(fields, key); ok {
			volume = int64(v)
			break
		}
	}
	if volume < 0 {
		volume = 0
	}

	return domain.Candle{
		Time:   ts,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, true
}

func number(fields map[string]gjson.Result, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}

	switch v.Type {
	case gjson.Number:
		return v.Float(), true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
