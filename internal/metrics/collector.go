package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the router's Prometheus metrics. All
// vectors live under one namespace and are registered through promauto, so
// constructing a second Collector with the same namespace panics.
type Collector struct {
	// HTTP surface
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Routing pipeline
	routingRequestsTotal *prometheus.CounterVec
	routingDuration      *prometheus.HistogramVec
	routingConfidence    prometheus.Histogram
	forwardTotal         *prometheus.CounterVec
	forwardPollAttempts  prometheus.Histogram

	// Registry
	registryAgents    prometheus.Gauge
	registryChanges   *prometheus.CounterVec
	agentRefreshTotal *prometheus.CounterVec

	// Snapshot cache
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a Collector under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.routingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_requests_total",
			Help:      "Total number of routing requests by outcome",
		},
		[]string{"outcome"},
	)

	c.routingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routing_duration_seconds",
			Help:      "End-to-end routing duration in seconds, forwarding included",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	c.routingConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routing_confidence",
			Help:      "Confidence of successful routing decisions",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	c.forwardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_requests_total",
			Help:      "Total number of forwarded requests by outcome",
		},
		[]string{"outcome"},
	)

	c.forwardPollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_poll_attempts",
			Help:      "Status polls used per forwarded request",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 15, 20, 30},
		},
	)

	c.registryAgents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_agents",
			Help:      "Number of currently registered agents",
		},
	)

	c.registryChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_changes_total",
			Help:      "Total number of registry changes",
		},
		[]string{"action"},
	)

	c.agentRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_refresh_total",
			Help:      "Total number of per-agent refresh attempts",
		},
		[]string{"status"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one handled HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordRouting records one routing request. Confidence is only observed
// for the routed outcome.
func (c *Collector) RecordRouting(outcome string, confidence float64, duration time.Duration) {
	c.routingRequestsTotal.WithLabelValues(outcome).Inc()
	c.routingDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == "routed" {
		c.routingConfidence.Observe(confidence)
	}
}

// RecordForward records one forwarded request and the polls it used.
func (c *Collector) RecordForward(outcome string, polls int) {
	c.forwardTotal.WithLabelValues(outcome).Inc()
	c.forwardPollAttempts.Observe(float64(polls))
}

// SetRegisteredAgents updates the registry size gauge.
func (c *Collector) SetRegisteredAgents(n int) {
	c.registryAgents.Set(float64(n))
}

// RecordRegistryChange records a register or unregister action.
func (c *Collector) RecordRegistryChange(action string) {
	c.registryChanges.WithLabelValues(action).Inc()
}

// RecordAgentRefresh records one per-agent refresh attempt.
func (c *Collector) RecordAgentRefresh(status string) {
	c.agentRefreshTotal.WithLabelValues(status).Inc()
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// statusCode buckets an HTTP status code into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
