package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type Metrics struct {
	gatherer          prometheus.Gatherer
	requestsTotal     *prometheus.CounterVec
	activeRequests    prometheus.Gauge
	requestDuration   *prometheus.HistogramVec
	upstreamDuration  *prometheus.HistogramVec
	tokenAcquisitions *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
}

// New registers the proxy metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	promFactory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		requestsTotal: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "flight_proxy_requests_total",
			Help: "Total number of requests handled by the proxy",
		}, []string{"route", "method", "status"}),
		activeRequests: promFactory.NewGauge(prometheus.GaugeOpts{
			Name: "flight_proxy_active_requests_count",
			Help: "Current in-flight requests handled by the proxy",
		}),
		requestDuration: promFactory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flight_proxy_request_duration_seconds",
			Help:    "Duration of requests handled by the proxy",
			Buckets: durationBuckets,
		}, []string{"route", "method"}),
		upstreamDuration: promFactory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flight_proxy_upstream_duration_seconds",
			Help:    "Duration of calls from the proxy to the token endpoint and flight API",
			Buckets: durationBuckets,
		}, []string{"host", "method", "status"}),
		tokenAcquisitions: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "flight_proxy_token_acquisitions_total",
			Help: "Upstream token requests by grant type and outcome",
		}, []string{"grant", "outcome"}),
		cacheLookups: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "flight_proxy_token_cache_lookups_total",
			Help: "Token cache lookups by result",
		}, []string{"result"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type responseInterceptor struct {
	http.ResponseWriter
	status int
}

func (w *responseInterceptor) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseInterceptor) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Middleware records request counts and durations labelled by the matched
// route pattern rather than the raw path.
func (m *Metrics) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.activeRequests.Inc()
		defer m.activeRequests.Dec()

		interceptor := &responseInterceptor{ResponseWriter: w}
		start := time.Now()
		next(interceptor, r)
		duration := time.Since(start)

		status := interceptor.status
		if status == 0 {
			status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(duration.Seconds())
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// RoundTripper times outbound calls. Transport errors are recorded with status "0".
func (m *Metrics) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(req)
		status := "0"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		m.upstreamDuration.WithLabelValues(req.URL.Host, req.Method, status).Observe(time.Since(start).Seconds())
		return resp, err
	})
}

// CacheLookup implements token.Observer.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// TokenAcquired implements token.Observer.
func (m *Metrics) TokenAcquired(grant oauthmodel.GrantType, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.tokenAcquisitions.WithLabelValues(grant.String(), outcome).Inc()
}
