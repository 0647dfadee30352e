// Package metrics provides Prometheus metrics export for the assistant platform.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cortex"

// PrometheusExporter exports platform metrics in Prometheus format.
// A nil exporter records nothing.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Assistant lifecycle metrics
	lifecycleOps     *prometheus.CounterVec
	lifecycleLatency *prometheus.HistogramVec

	// Focus metrics
	focusMutations *prometheus.CounterVec
	focusEvictions prometheus.Counter

	// Remote provider metrics
	remoteCalls   *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64

	// RuntimeCollectors adds the Go runtime and process collectors.
	RuntimeCollectors bool
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.lifecycleOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "operations_total",
			Help:      "Total number of assistant lifecycle operations",
		},
		[]string{"operation", "status"},
	)

	e.lifecycleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "operation_latency_seconds",
			Help:      "Assistant lifecycle operation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)

	e.focusMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "focus",
			Name:      "mutations_total",
			Help:      "Total number of focus group mutations",
		},
		[]string{"operation"},
	)

	e.focusEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "focus",
			Name:      "evictions_total",
			Help:      "Total number of memories evicted from full focus groups",
		},
	)

	e.remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of remote assistant provider calls",
		},
		[]string{"method", "status"},
	)

	e.remoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Remote assistant provider latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"method"},
	)

	e.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	e.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		e.lifecycleOps,
		e.lifecycleLatency,
		e.focusMutations,
		e.focusEvictions,
		e.remoteCalls,
		e.remoteLatency,
		e.httpRequests,
		e.httpLatency,
	)
	if cfg.RuntimeCollectors {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return e
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordLifecycle records an assistant lifecycle operation.
func (e *PrometheusExporter) RecordLifecycle(operation string, latency time.Duration, success bool) {
	if e == nil {
		return
	}
	e.lifecycleOps.WithLabelValues(operation, status(success)).Inc()
	e.lifecycleLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordFocusMutation records a successful focus group mutation.
func (e *PrometheusExporter) RecordFocusMutation(operation string) {
	if e == nil {
		return
	}
	e.focusMutations.WithLabelValues(operation).Inc()
}

// RecordFocusEvictions records memories evicted to respect a focus cap.
func (e *PrometheusExporter) RecordFocusEvictions(count int) {
	if e == nil || count <= 0 {
		return
	}
	e.focusEvictions.Add(float64(count))
}

// RecordRemoteCall records a remote provider call.
func (e *PrometheusExporter) RecordRemoteCall(method string, latency time.Duration, success bool) {
	if e == nil {
		return
	}
	e.remoteCalls.WithLabelValues(method, status(success)).Inc()
	e.remoteLatency.WithLabelValues(method).Observe(latency.Seconds())
}

// RecordHTTPRequest records a served HTTP request.
func (e *PrometheusExporter) RecordHTTPRequest(method, route, code string, latency time.Duration) {
	if e == nil {
		return
	}
	e.httpRequests.WithLabelValues(method, route, code).Inc()
	e.httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
