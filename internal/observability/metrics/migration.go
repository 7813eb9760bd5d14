package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics contains Prometheus metrics for the index migration job
type MigrationMetrics struct {
	registry *prometheus.Registry

	// Work item accounting
	itemsPlanned    prometheus.Gauge
	itemsResolved   *prometheus.CounterVec
	retriesTotal    prometheus.Counter
	dispatchesTotal prometheus.Counter

	// Live job state
	itemsInFlight   prometheus.Gauge
	itemsQueued     prometheus.Gauge
	maxProgress     prometheus.Gauge
	itemDurationSec *prometheus.HistogramVec
}

// NewMigrationMetrics creates and registers new migration job metrics
func NewMigrationMetrics(registry *prometheus.Registry) (*MigrationMetrics, error) {
	m := &MigrationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *MigrationMetrics) initMetrics() error {
	m.itemsPlanned = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_items_planned",
		Help: "Number of work items produced by the batch planner",
	})

	m.itemsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_items_resolved_total",
			Help: "Work items resolved by outcome (completed, failed, retried)",
		},
		[]string{"resolution"},
	)

	m.retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "migration_retries_total",
		Help: "Total number of work item retry dispatches",
	})

	m.dispatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "migration_dispatches_total",
		Help: "Total number of remote reindex dispatches, including retries",
	})

	m.itemsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_items_in_flight",
		Help: "Number of remote reindex tasks currently in flight",
	})

	m.itemsQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_items_queued",
		Help: "Number of work items waiting for dispatch",
	})

	m.maxProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "migration_max_progress_fraction",
		Help: "Maximum observed progress fraction across in-flight items",
	})

	m.itemDurationSec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "migration_item_duration_seconds",
			Help:    "Remote task running time at item resolution",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12), // 100ms to ~7min
		},
		[]string{"resolution"},
	)

	return nil
}

// SetPlanned records the planner output size
func (m *MigrationMetrics) SetPlanned(count int) {
	m.itemsPlanned.Set(float64(count))
}

// RecordResolution counts one item resolution and its remote running time
func (m *MigrationMetrics) RecordResolution(resolution string, seconds float64) {
	m.itemsResolved.WithLabelValues(resolution).Inc()
	m.itemDurationSec.WithLabelValues(resolution).Observe(seconds)
}

// RecordRetry counts one retry dispatch
func (m *MigrationMetrics) RecordRetry() {
	m.retriesTotal.Inc()
}

// RecordDispatch counts one remote reindex dispatch
func (m *MigrationMetrics) RecordDispatch() {
	m.dispatchesTotal.Inc()
}

// UpdateQueueState records the live queue and in-flight sizes
func (m *MigrationMetrics) UpdateQueueState(queued, inFlight int) {
	m.itemsQueued.Set(float64(queued))
	m.itemsInFlight.Set(float64(inFlight))
}

// UpdateMaxProgress records the maximum in-flight progress fraction
func (m *MigrationMetrics) UpdateMaxProgress(fraction float64) {
	m.maxProgress.Set(fraction)
}

// Describe implements the prometheus.Collector interface
func (m *MigrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.itemsPlanned.Describe(ch)
	m.itemsResolved.Describe(ch)
	m.retriesTotal.Describe(ch)
	m.dispatchesTotal.Describe(ch)
	m.itemsInFlight.Describe(ch)
	m.itemsQueued.Describe(ch)
	m.maxProgress.Describe(ch)
	m.itemDurationSec.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *MigrationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.itemsPlanned.Collect(ch)
	m.itemsResolved.Collect(ch)
	m.retriesTotal.Collect(ch)
	m.dispatchesTotal.Collect(ch)
	m.itemsInFlight.Collect(ch)
	m.itemsQueued.Collect(ch)
	m.maxProgress.Collect(ch)
	m.itemDurationSec.Collect(ch)
}
