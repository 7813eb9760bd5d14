// Package metrics provides Prometheus metric collectors for faultline components.
package metrics

// Histogram bucket constants shared across metric definitions.
const (
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketFactor2 is the standard doubling factor for exponential buckets.
	BucketFactor2 = 2.0
	// BucketCount10 gives ten exponential buckets.
	BucketCount10 = 10
	// BucketCount12 gives twelve exponential buckets.
	BucketCount12 = 12
)

// Item resolution labels used by the migration metrics.
const (
	// ResolutionCompleted marks items that finished successfully.
	ResolutionCompleted = "completed"
	// ResolutionFailed marks items that exhausted their attempts.
	ResolutionFailed = "failed"
	// ResolutionRetried marks items re-enqueued for another attempt.
	ResolutionRetried = "retried"
)
