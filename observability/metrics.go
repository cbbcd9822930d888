package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for venvbox.
// Uses a custom registry, no global state.
type Metrics struct {
	Registry *prometheus.Registry

	// Request metrics.
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Environment lifecycle metrics.
	BuildsTotal   *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	ReusesTotal   prometheus.Counter

	// Execution metrics.
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
}

// Request kind label values.
const (
	KindTemporary = "temporary"
	KindNamed     = "named"
)

// Status label values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusFault   = "fault"
	StatusTimeout = "timeout"
)

// NewMetrics creates a Metrics collector with all metrics registered on a
// custom prometheus.Registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "venvbox",
			Subsystem: "request",
			Name:      "requests_total",
			Help:      "Total execution requests.",
		}, []string{"kind", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "venvbox",
			Subsystem: "request",
			Name:      "duration_seconds",
			Help:      "End-to-end request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}, []string{"kind"}),

		BuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "venvbox",
			Subsystem: "env",
			Name:      "builds_total",
			Help:      "Total environment builds.",
		}, []string{"kind", "status"}),

		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "venvbox",
			Subsystem: "env",
			Name:      "build_duration_seconds",
			Help:      "Environment build duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		ReusesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "venvbox",
			Subsystem: "env",
			Name:      "reuses_total",
			Help:      "Total cached environment reuses.",
		}),

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "venvbox",
			Subsystem: "exec",
			Name:      "executions_total",
			Help:      "Total code executions.",
		}, []string{"status"}),

		ExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "venvbox",
			Subsystem: "exec",
			Name:      "duration_seconds",
			Help:      "Code execution duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.BuildsTotal,
		m.BuildDuration,
		m.ReusesTotal,
		m.ExecutionsTotal,
		m.ExecutionDuration,
	)

	return m
}
