// Package observability provides Prometheus metrics for the application.
//
// The observability package defines a Metrics collector backed by a custom
// prometheus.Registry so that no global metric state is shared between
// instances. The collector covers request outcomes, environment build and
// reuse counts, and code execution durations.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.ReusesTotal.Inc()
package observability
