package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SearchMetrics contains Prometheus metrics for search backend requests
type SearchMetrics struct {
	registry *prometheus.Registry

	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
}

// NewSearchMetrics creates and registers new search client metrics
func NewSearchMetrics(registry *prometheus.Registry) (*SearchMetrics, error) {
	m := &SearchMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *SearchMetrics) initMetrics() error {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search backend requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	m.requestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "Search backend request latency",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~40s
		},
		[]string{"operation"},
	)

	return nil
}

// RecordRequest increments the request counter for an operation outcome
func (m *SearchMetrics) RecordRequest(operation, status string) {
	m.requestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRequestDuration observes the latency of one backend request
func (m *SearchMetrics) RecordRequestDuration(operation string, seconds float64) {
	m.requestDurationSeconds.WithLabelValues(operation).Observe(seconds)
}

// Describe implements the prometheus.Collector interface
func (m *SearchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDurationSeconds.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *SearchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDurationSeconds.Collect(ch)
}
