package declarest

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request pipeline:
// request counts and latencies, retries, cache effectiveness, auth events
// and taxonomy errors. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	retriesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	authEventsTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer, which keeps tests and multi-client setups isolated.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "declarest_requests_total",
				Help: "Total number of endpoint invocations",
			},
			[]string{"api", "endpoint", "method", "status_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "declarest_request_duration_seconds",
				Help:    "Duration of endpoint invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api", "endpoint", "method"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "declarest_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"api", "endpoint"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "declarest_cache_hits_total",
				Help: "Total number of response cache hits",
			},
			[]string{"api", "endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "declarest_cache_misses_total",
				Help: "Total number of response cache misses",
			},
			[]string{"api", "endpoint"},
		),
		authEventsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "declarest_auth_events_total",
				Help: "Total number of login/refresh attempts by outcome",
			},
			[]string{"api", "event", "outcome"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "declarest_errors_total",
				Help: "Total number of taxonomy errors surfaced to callers",
			},
			[]string{"api", "endpoint", "type"},
		),
	}
}

// RecordRequest records a completed invocation. A status of 0 means the
// call failed before any response was produced.
func (m *MetricsCollector) RecordRequest(api, endpoint, method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(api, endpoint, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(api, endpoint, method).Observe(duration.Seconds())
}

// RecordRetry records one scheduled retry attempt.
func (m *MetricsCollector) RecordRetry(api, endpoint string) {
	m.retriesTotal.WithLabelValues(api, endpoint).Inc()
}

// RecordCacheHit records a response served from the cache port.
func (m *MetricsCollector) RecordCacheHit(api, endpoint string) {
	m.cacheHits.WithLabelValues(api, endpoint).Inc()
}

// RecordCacheMiss records a cache probe that fell through to transport.
func (m *MetricsCollector) RecordCacheMiss(api, endpoint string) {
	m.cacheMisses.WithLabelValues(api, endpoint).Inc()
}

// RecordAuthEvent records a login or refresh attempt.
func (m *MetricsCollector) RecordAuthEvent(api, event string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.authEventsTotal.WithLabelValues(api, event, outcome).Inc()
}

// RecordError records a taxonomy error by kind.
func (m *MetricsCollector) RecordError(api, endpoint, errorType string) {
	m.errorsTotal.WithLabelValues(api, endpoint, errorType).Inc()
}
