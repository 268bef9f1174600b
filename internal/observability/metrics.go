package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for cloudbase-mcp.
// Uses a custom registry, not the global one.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Credential resolution metrics.
	CredentialResolutionsTotal *prometheus.CounterVec

	// Environment id resolution metrics.
	EnvIDResolutionsTotal   *prometheus.CounterVec
	EnvIDResolutionDuration prometheus.Histogram

	// Client build metrics.
	ClientBuildsTotal *prometheus.CounterVec

	// Tool call metrics.
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	// Plugin metrics.
	PluginsRegistered prometheus.Gauge

	// HTTP transport metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		CredentialResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudbase",
			Subsystem: "credential",
			Name:      "resolutions_total",
			Help:      "Total credential resolutions by source.",
		}, []string{"source"}),

		EnvIDResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudbase",
			Subsystem: "envid",
			Name:      "resolutions_total",
			Help:      "Total environment id resolutions by outcome.",
		}, []string{"outcome"}),

		// Interactive setup can take minutes; the top bucket is the 600s bound.
		EnvIDResolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cloudbase",
			Subsystem: "envid",
			Name:      "resolution_duration_seconds",
			Help:      "Environment id resolution duration in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 5, 30, 60, 180, 600},
		}),

		ClientBuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudbase",
			Subsystem: "client",
			Name:      "builds_total",
			Help:      "Total client builds.",
		}, []string{"mode", "status"}),

		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudbase",
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total tool calls.",
		}, []string{"tool", "status"}),

		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cloudbase",
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		PluginsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cloudbase",
			Subsystem: "plugin",
			Name:      "registered",
			Help:      "Number of plugins registered on the server.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudbase",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cloudbase",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cloudbase",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	reg.MustRegister(
		m.CredentialResolutionsTotal,
		m.EnvIDResolutionsTotal,
		m.EnvIDResolutionDuration,
		m.ClientBuildsTotal,
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.PluginsRegistered,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}
