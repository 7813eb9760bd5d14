package migration

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/faultline/faultline/internal/conf"
	"github.com/faultline/faultline/internal/errors"
	"github.com/faultline/faultline/internal/logging"
	"github.com/faultline/faultline/internal/observability/metrics"
	"github.com/faultline/faultline/internal/search"
)

// Package-level logger specific to the migration service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "migration.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "migration", serviceLevelVar)
	if err != nil {
		// Fallback: log error to standard log and disable service file logging
		log.Printf("FATAL: Failed to initialize migration file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "migration")
		closeLogger = func() error { return nil }
	}
}

// Retry and scheduling defaults. All of them are parameters on JobOptions so
// tests can substitute zero-delay variants.
const (
	// DefaultMaxAttempts bounds how often one item is dispatched.
	DefaultMaxAttempts = 3
	// DefaultMaxInFlight caps the number of simultaneous remote tasks.
	DefaultMaxInFlight = 5
	// DefaultStatusErrorLimit is the number of consecutive erroneous status
	// polls tolerated before a remote task is treated as failed.
	DefaultStatusErrorLimit = 5
	// DefaultTickInterval is the coordination loop sleep between ticks.
	DefaultTickInterval = 5 * time.Second
	// DefaultReportInterval is how often aggregate progress is emitted.
	DefaultReportInterval = 5 * time.Minute
	// DefaultRetryDelay is the wait before a failed item is re-enqueued.
	DefaultRetryDelay = 15 * time.Second
	// DefaultRateLimitDelay is the brief wait after a backend overload signal.
	DefaultRateLimitDelay = time.Second
)

// Batch size schedule by dispatch attempt. Shrinking the batch on retry
// reduces per-batch blast radius and backend load.
const (
	batchSizeFirstAttempt  = 1000
	batchSizeSecondAttempt = 500
	batchSizeLaterAttempts = 250
)

// batchSizeForAttempt returns the remote batch size for a dispatch, given the
// number of attempts already made.
func batchSizeForAttempt(attempts int) int {
	switch {
	case attempts == 0:
		return batchSizeFirstAttempt
	case attempts == 1:
		return batchSizeSecondAttempt
	default:
		return batchSizeLaterAttempts
	}
}

// JobOptions configures one migration job run.
type JobOptions struct {
	Migration conf.MigrationSettings // planner input, including the required source connection
	Scope     string                 // index name prefix

	MaxAttempts      int           // dispatch attempts per item, default 3
	MaxInFlight      int           // simultaneous remote tasks, default 5
	StatusErrorLimit int           // consecutive erroneous polls tolerated, default 5
	TickInterval     time.Duration // loop sleep between ticks, default 5s
	ReportInterval   time.Duration // periodic progress interval, default 5m
	RetryDelay       time.Duration // wait before re-enqueueing a failed item, default 15s
	RateLimitDelay   time.Duration // wait after a backend overload signal, default 1s

	Clock   Clock                     // nil for the system clock
	Metrics *metrics.MigrationMetrics // optional
}

// withDefaults fills unset options.
func (o JobOptions) withDefaults() JobOptions {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxInFlight == 0 {
		o.MaxInFlight = DefaultMaxInFlight
	}
	if o.StatusErrorLimit == 0 {
		o.StatusErrorLimit = DefaultStatusErrorLimit
	}
	if o.TickInterval == 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.ReportInterval == 0 {
		o.ReportInterval = DefaultReportInterval
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	return o
}

// Job is one migration run. All mutable run state lives here, not in package
// globals, so independent runs can coexist in tests. The coordination loop is
// logically single threaded: dispatch and poll steps never interleave for the
// same item, so items need no locking.
type Job struct {
	opts    JobOptions
	backend search.Backend
	clock   Clock
	runID   string

	queue        *workQueue
	totalRetries int
	startedAt    time.Time
	lastReport   time.Time
	finalized    bool
}

// NewJob creates a migration job from options.
func NewJob(opts JobOptions, backend search.Backend) *Job {
	opts = opts.withDefaults()
	return &Job{
		opts:    opts,
		backend: backend,
		clock:   opts.Clock,
		runID:   uuid.NewString(),
	}
}

// Run plans the work list and drives every item to resolution, then performs
// alias maintenance. Per-item failures never abort the run; the only error
// returned before completion is the upfront configuration error (or context
// cancellation). There is no checkpoint: a restarted job re-plans from scratch
// and relies on destination-side idempotency for already-migrated items.
func (j *Job) Run(ctx context.Context) error {
	items, err := PlanWorkItems(&j.opts.Migration, j.opts.Scope, j.backend, j.clock.Now())
	if err != nil {
		logger.Error("migration planning failed", "run_id", j.runID, "error", err)
		return err
	}

	j.queue = newWorkQueue(items)
	j.startedAt = j.clock.Now()
	j.lastReport = j.startedAt
	if j.opts.Metrics != nil {
		j.opts.Metrics.SetPlanned(len(items))
	}

	logger.Info("index migration started",
		"run_id", j.runID,
		"items", len(items),
		"collections", len(j.opts.Migration.Collections),
		"retention_days", j.opts.Migration.RetentionDays,
		"max_in_flight", j.opts.MaxInFlight)

	for !j.queue.Done() {
		if err := ctx.Err(); err != nil {
			logger.Warn("migration interrupted",
				"run_id", j.runID,
				"pending", j.queue.PendingCount(),
				"in_flight", j.queue.InFlightCount())
			return err
		}

		for j.tryDispatchNext(ctx) {
		}
		j.pollInFlight(ctx)
		j.maybeReportProgress()
		j.updateQueueMetrics()

		if j.queue.Done() {
			break
		}
		j.clock.Sleep(j.opts.TickInterval)
	}

	j.finalize(ctx)
	return nil
}

// tryDispatchNext dispatches the head of the pending queue if capacity allows.
// It returns true when an item was consumed, whether or not the dispatch
// succeeded, so callers can drain the queue up to the concurrency cap.
func (j *Job) tryDispatchNext(ctx context.Context) bool {
	if j.queue.InFlightCount() >= j.opts.MaxInFlight {
		return false
	}
	item := j.queue.Dequeue()
	if item == nil {
		return false
	}

	batchSize := batchSizeForAttempt(item.Attempts)
	item.Attempts++
	item.ConsecutiveStatusErrors = 0
	if j.opts.Metrics != nil {
		j.opts.Metrics.RecordDispatch()
	}

	// Provision the destination partition once, before the first remote
	// dispatch, never again on retries.
	if item.CreateTarget != nil && !item.provisioned {
		item.provisioned = true
		if err := item.CreateTarget(ctx); err != nil {
			j.handleDispatchError(item, err)
			return true
		}
	}

	handle, err := j.backend.Reindex(ctx, &search.ReindexRequest{
		SourceIndex: item.SourceIndex,
		TypeFilter:  item.SourceType,
		DateField:   item.DateField,
		Cutoff:      item.Cutoff,
		BatchSize:   batchSize,
		TargetIndex: item.TargetIndex,
	})
	if err != nil {
		j.handleDispatchError(item, err)
		return true
	}

	item.TaskHandle = handle
	j.queue.MarkInFlight(item)
	logger.Info("reindex dispatched",
		"run_id", j.runID,
		"item", item.Describe(),
		"attempt", item.Attempts,
		"batch_size", batchSize,
		"task", handle)
	return true
}

// handleDispatchError applies the retry policy to a failed dispatch attempt.
// Provisioning and remote-call failures count like any other attempt failure.
func (j *Job) handleDispatchError(item *WorkItem, err error) {
	if item.Attempts < j.opts.MaxAttempts {
		logger.Warn("dispatch failed, will retry",
			append(item.counters(), "run_id", j.runID, "error", err.Error())...)
		j.retryItem(item)
		return
	}
	j.failItem(item, err)
}

// pollInFlight fetches the remote status of every in-flight item once.
func (j *Job) pollInFlight(ctx context.Context) {
	for _, item := range j.queue.InFlightItems() {
		status, err := j.backend.TaskStatus(ctx, item.TaskHandle)
		if err != nil {
			j.handleStatusFetchError(item, err)
			continue
		}
		j.resolveStatus(ctx, item, status)
	}
}

// handleStatusFetchError counts a failed status fetch toward the consecutive
// error limit, so an item whose task handle is permanently unreachable still
// resolves instead of wedging the run. A fetch failure does not count toward
// the item's attempts. Backend overload is exempt from the error count: it is
// a signal to slow down, not evidence the task is gone.
func (j *Job) handleStatusFetchError(item *WorkItem, err error) {
	if errors.HasCategory(err, errors.CategoryLimit) {
		logger.Debug("backend rate limited, backing off",
			"run_id", j.runID,
			"item", item.Describe(),
			"delay", j.opts.RateLimitDelay.String())
		j.clock.Sleep(j.opts.RateLimitDelay)
		return
	}

	item.ConsecutiveStatusErrors++
	logger.Debug("status poll failed",
		"run_id", j.runID,
		"item", item.Describe(),
		"task", item.TaskHandle,
		"consecutive_status_errors", item.ConsecutiveStatusErrors,
		"error", err.Error())
	if item.ConsecutiveStatusErrors > j.opts.StatusErrorLimit {
		j.retryOrFail(item, fmt.Errorf("remote task status unreachable: %w", err))
	}
}

// resolveStatus applies the retry and failure policy to one status snapshot.
func (j *Job) resolveStatus(ctx context.Context, item *WorkItem, status *search.TaskStatus) {
	// Invalid snapshots carry no counters; keep the last valid one so the
	// audit records reflect real progress.
	if status.Valid || item.LastStatus == nil {
		item.LastStatus = status
	}

	switch {
	case !status.Valid:
		item.ConsecutiveStatusErrors++
		// A broken status that persists, or a task that finished in an
		// errored state, means the remote task has effectively failed.
		if status.Completed || item.ConsecutiveStatusErrors > j.opts.StatusErrorLimit {
			j.retryOrFail(item, fmt.Errorf("remote task reported an errored or unusable status"))
		}

	case status.Completed:
		item.ConsecutiveStatusErrors = 0
		j.completeItem(ctx, item)

	default:
		// Task still running; progress is tracked purely for reporting.
		item.ConsecutiveStatusErrors = 0
		logger.Debug("reindex in progress",
			"run_id", j.runID,
			"item", item.Describe(),
			"progress", status.Progress(),
			"processed", status.Processed(),
			"total", status.Total)
	}
}

// retryOrFail removes a resolved item from the in-flight set and applies the
// retry policy: another dispatch while attempts remain, a permanent failure
// otherwise.
func (j *Job) retryOrFail(item *WorkItem, cause error) {
	j.queue.RemoveInFlight(item)
	if item.Attempts < j.opts.MaxAttempts {
		logger.Warn("remote task failed, will retry",
			append(item.counters(),
				"run_id", j.runID,
				"consecutive_status_errors", item.ConsecutiveStatusErrors,
				"error", cause.Error())...)
		j.retryItem(item)
		return
	}
	j.failItem(item, errors.New(cause).
		Category(errors.CategoryMigration).
		Priority(errors.PriorityCritical).
		Context("item", item.Describe()).
		Context("attempts", item.Attempts).
		Component("migration").
		Build())
}

// retryItem resets per-dispatch state and re-enqueues the item at the tail.
func (j *Job) retryItem(item *WorkItem) {
	item.ConsecutiveStatusErrors = 0
	item.TaskHandle = ""
	j.totalRetries++
	if j.opts.Metrics != nil {
		j.opts.Metrics.RecordRetry()
		j.opts.Metrics.RecordResolution(metrics.ResolutionRetried, j.itemDuration(item))
	}
	j.clock.Sleep(j.opts.RetryDelay)
	j.queue.Requeue(item)
}

// completeItem moves the item to the completed list and logs the realized
// document count of the target index.
func (j *Job) completeItem(ctx context.Context, item *WorkItem) {
	j.queue.MarkCompleted(item)
	if j.opts.Metrics != nil {
		j.opts.Metrics.RecordResolution(metrics.ResolutionCompleted, j.itemDuration(item))
	}

	attrs := append(item.counters(), "run_id", j.runID)
	if count, err := j.backend.Count(ctx, item.TargetIndex); err != nil {
		logger.Warn("target count query failed",
			"run_id", j.runID,
			"item", item.Describe(),
			"error", err.Error())
	} else {
		attrs = append(attrs, "target_doc_count", count)
	}
	logger.Info("reindex completed", attrs...)
}

// failItem moves the item to the failed list. Permanent item failures are
// audit records for operators, they never abort the job.
func (j *Job) failItem(item *WorkItem, err error) {
	j.queue.MarkFailed(item)
	if j.opts.Metrics != nil {
		j.opts.Metrics.RecordResolution(metrics.ResolutionFailed, j.itemDuration(item))
	}
	logger.Error("reindex permanently failed",
		append(item.counters(), "run_id", j.runID, "error", err.Error())...)
}

// maybeReportProgress emits the periodic aggregate status line when due.
func (j *Job) maybeReportProgress() {
	now := j.clock.Now()
	if now.Sub(j.lastReport) < j.opts.ReportInterval {
		return
	}
	j.lastReport = now

	maxProgress := 0.0
	for _, item := range j.queue.InFlightItems() {
		if p := item.Progress(); p > maxProgress {
			maxProgress = p
		}
	}
	if j.opts.Metrics != nil {
		j.opts.Metrics.UpdateMaxProgress(maxProgress)
	}

	logger.Info("migration progress",
		"run_id", j.runID,
		"completed", len(j.queue.completed),
		"total", j.queue.Total(),
		"in_flight", j.queue.InFlightCount(),
		"pending", j.queue.PendingCount(),
		"failed", len(j.queue.failed),
		"retries", j.totalRetries,
		"max_progress", maxProgress,
		"elapsed", now.Sub(j.startedAt).String())
}

// finalize emits the per-item audit records and repoints the aliases. Alias
// maintenance runs unconditionally: completed partitions go live even when
// other items failed, partial migration is an accepted, logged outcome.
func (j *Job) finalize(ctx context.Context) {
	if j.finalized {
		return
	}
	j.finalized = true

	for _, item := range j.queue.completed {
		logger.Info("migration item completed", append(item.counters(), "run_id", j.runID)...)
	}
	for _, item := range j.queue.failed {
		logger.Error("migration item failed", append(item.counters(), "run_id", j.runID)...)
	}

	if err := j.backend.MaintainAliases(ctx); err != nil {
		logger.Error("alias maintenance failed",
			"run_id", j.runID,
			"error", err.Error())
	}

	logger.Info("index migration finished",
		"run_id", j.runID,
		"completed", len(j.queue.completed),
		"failed", len(j.queue.failed),
		"retries", j.totalRetries,
		"elapsed", j.clock.Now().Sub(j.startedAt).String())
}

// Summary describes the outcome of a finished run.
type Summary struct {
	RunID     string
	Planned   int
	Completed int
	Failed    int
	Retries   int
	Elapsed   time.Duration
}

// Summary returns the run outcome. Valid after Run has returned.
func (j *Job) Summary() Summary {
	s := Summary{RunID: j.runID, Retries: j.totalRetries}
	if j.queue != nil {
		s.Planned = j.queue.Total()
		s.Completed = len(j.queue.completed)
		s.Failed = len(j.queue.failed)
		s.Elapsed = j.clock.Now().Sub(j.startedAt)
	}
	return s
}

func (j *Job) itemDuration(item *WorkItem) float64 {
	if item.LastStatus == nil {
		return 0
	}
	return item.LastStatus.RunningTime.Seconds()
}

func (j *Job) updateQueueMetrics() {
	if j.opts.Metrics != nil {
		j.opts.Metrics.UpdateQueueState(j.queue.PendingCount(), j.queue.InFlightCount())
	}
}
