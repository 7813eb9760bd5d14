// Package migration implements the index generation migration job: a batch
// planner that enumerates work items, and a single-threaded coordination loop
// that drives many asynchronous remote reindex tasks to completion with bounded
// concurrency, adaptive retry and progress accounting.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/faultline/faultline/internal/search"
)

// ItemState represents the current state of a work item
type ItemState int

const (
	// StateQueued indicates the item is waiting for dispatch
	StateQueued ItemState = iota
	// StateInFlight indicates a remote task is running for the item
	StateInFlight
	// StateRetrying indicates the item failed and has been re-enqueued
	StateRetrying
	// StateCompleted indicates the remote task finished successfully
	StateCompleted
	// StateFailed indicates the item exhausted its attempts
	StateFailed
)

// String returns a string representation of the item state
func (s ItemState) String() string {
	switch s {
	case StateQueued:
		return "Queued"
	case StateInFlight:
		return "InFlight"
	case StateRetrying:
		return "Retrying"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ProvisionFunc provisions the destination partition of a work item. It must
// be idempotent; the job invokes it at most once per item across all attempts.
type ProvisionFunc func(ctx context.Context) error

// WorkItem describes one source to target migration unit and its retry and
// progress state. Items are created by the planner and mutated only by the
// coordination loop, which is single threaded, so no locking is needed.
type WorkItem struct {
	SourceIndex string // physical source index
	SourceType  string // logical collection discriminator within the source index
	TargetIndex string // destination index
	DateField   string // optional; restricts migration to records at or after Cutoff
	Cutoff      time.Time

	// CreateTarget provisions the destination partition before the first
	// dispatch. Nil for items whose destination already exists.
	CreateTarget ProvisionFunc

	TaskHandle              string             // remote task handle, empty when not dispatched
	Attempts                int                // dispatch attempts made so far
	ConsecutiveStatusErrors int                // consecutive erroneous status polls for the current dispatch
	LastStatus              *search.TaskStatus // last successfully retrieved progress snapshot
	State                   ItemState

	provisioned bool // CreateTarget has been invoked
}

// Describe returns a compact identifier for log lines.
func (w *WorkItem) Describe() string {
	if w.SourceType != "" {
		return fmt.Sprintf("%s(%s) -> %s", w.SourceIndex, w.SourceType, w.TargetIndex)
	}
	return fmt.Sprintf("%s -> %s", w.SourceIndex, w.TargetIndex)
}

// Progress returns the completion fraction of the last known status, 0 when unknown.
func (w *WorkItem) Progress() float64 {
	if w.LastStatus == nil {
		return 0
	}
	return w.LastStatus.Progress()
}

// counters returns the final diagnostic counters for audit log lines.
func (w *WorkItem) counters() []any {
	attrs := []any{
		"source_index", w.SourceIndex,
		"type_filter", w.SourceType,
		"target_index", w.TargetIndex,
		"attempts", w.Attempts,
		"task", w.TaskHandle,
	}
	if w.LastStatus != nil {
		attrs = append(attrs,
			"created", w.LastStatus.Created,
			"updated", w.LastStatus.Updated,
			"deleted", w.LastStatus.Deleted,
			"version_conflicts", w.LastStatus.VersionConflicts,
			"total", w.LastStatus.Total,
			"duration", w.LastStatus.RunningTime.String(),
		)
	}
	return attrs
}
