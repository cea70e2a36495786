package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names. Everything the API server emits is prefixed "mapnest_" so
// shared Prometheus deployments can tell this service's series apart.
const (
	MetricRateLimitRequests     = "mapnest_rate_limit_requests_total"
	MetricRateLimitBlocked      = "mapnest_rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "mapnest_rate_limit_redis_errors_total"
	MetricHTTPRequestDuration   = "mapnest_http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "mapnest_http_requests_total"
	MetricHTTPRequestSizeBytes  = "mapnest_http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "mapnest_http_response_size_bytes"
)

// Metrics holds the Prometheus collectors for the HTTP middleware chain.
// Rate limit counters are labeled by scope ("global", "export") since all
// limits are keyed by client IP. Safe for concurrent use.
type Metrics struct {
	rateLimitRequests    *prometheus.CounterVec
	rateLimitBlocked     *prometheus.CounterVec
	rateLimitRedisErrors prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
}

// NewMetrics builds the collectors without registering them; call Register
// with the service registry.
func NewMetrics() *Metrics {
	httpLabels := []string{"method", "path", "status"}
	return &Metrics{
		rateLimitRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitRequests,
				Help: "Rate limit checks by scope",
			},
			[]string{"scope"},
		),
		rateLimitBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitBlocked,
				Help: "Requests rejected by the rate limiter, by scope",
			},
			[]string{"scope"},
		),
		rateLimitRedisErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRateLimitRedisErrors,
				Help: "Redis failures during rate limiting (fail-open events)",
			},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			// The long duration tail belongs to PNG exports, which render
			// and upload inside the request.
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			httpLabels,
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "HTTP requests served",
			},
			httpLabels,
		),
		httpRequestSize: prometheus.NewHistogramVec(
			// 100 B to ~1 MB; the largest bodies are boundary rings.
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestSizeBytes,
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 5),
			},
			httpLabels,
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPResponseSizeBytes,
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 5),
			},
			httpLabels,
		),
	}
}

// Register registers all collectors with reg, stopping at the first failure.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRateLimitRequests counts a rate limit check for the given scope.
func (m *Metrics) IncRateLimitRequests(scope string) {
	m.rateLimitRequests.WithLabelValues(scope).Inc()
}

// IncRateLimitBlocked counts a rejected request for the given scope.
func (m *Metrics) IncRateLimitBlocked(scope string) {
	m.rateLimitBlocked.WithLabelValues(scope).Inc()
}

// IncRateLimitRedisErrors counts a fail-open event caused by Redis.
func (m *Metrics) IncRateLimitRedisErrors() {
	m.rateLimitRedisErrors.Inc()
}

// ObserveHTTPRequest records one served request. path must already be
// normalized to a route pattern.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, requestSize, responseSize int64) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpRequestSize.With(labels).Observe(float64(requestSize))
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

// Collectors returns every collector, in registration order.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitRedisErrors,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpRequestSize,
		m.httpResponseSize,
	}
}
