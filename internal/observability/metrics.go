// Package observability provides Prometheus metrics functionality for monitoring faultline.
// Sentry-related error telemetry is handled in the telemetry package.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	metricspkg "github.com/faultline/faultline/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Migration *metricspkg.MigrationMetrics
	Search    *metricspkg.SearchMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	migrationMetrics, err := metricspkg.NewMigrationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Migration metrics: %w", err)
	}

	searchMetrics, err := metricspkg.NewSearchMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Search metrics: %w", err)
	}

	m := &Metrics{
		registry:  registry,
		Migration: migrationMetrics,
		Search:    searchMetrics,
	}

	return m, nil
}

// RegisterHandlers registers the metrics HTTP handlers on the given mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Registry returns the private Prometheus registry backing all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
