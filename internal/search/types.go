// Package search provides the client for the search backend used by faultline,
// including the asynchronous reindex, task status, count, partition provisioning
// and alias maintenance operations the index migration job depends on.
package search

import (
	"context"
	"time"
)

// TaskStatus is a progress snapshot of an asynchronous remote task.
type TaskStatus struct {
	Completed        bool  // true when the remote task has finished
	Valid            bool  // false when the backend reported the task as errored
	Created          int64 // documents created so far
	Updated          int64 // documents updated so far
	Deleted          int64 // documents deleted so far
	VersionConflicts int64 // per-document version conflicts skipped
	Total            int64 // total documents the task will process
	RunningTime      time.Duration
}

// Processed returns the number of documents the task has accounted for.
func (s *TaskStatus) Processed() int64 {
	return s.Created + s.Updated + s.Deleted + s.VersionConflicts
}

// Progress returns the completion fraction in [0,1], 0 when the total is unknown.
func (s *TaskStatus) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Processed()) / float64(s.Total)
}

// ReindexRequest describes one source to target reindex operation.
type ReindexRequest struct {
	SourceIndex string    // physical source index
	TypeFilter  string    // logical collection discriminator within the source index
	DateField   string    // optional; restricts migration to records at or after Cutoff
	Cutoff      time.Time // earliest record timestamp migrated, used when DateField is set
	BatchSize   int       // per-batch document count for the remote operation
	TargetIndex string    // destination index
}

// Backend is the contract the migration job requires from the search backend.
// All operations are ordinary blocking calls; Reindex returns immediately with
// a remote task handle instead of waiting for completion.
type Backend interface {
	// Reindex starts an asynchronous remote reindex and returns its task handle.
	Reindex(ctx context.Context, req *ReindexRequest) (string, error)
	// TaskStatus fetches the progress snapshot of an in-flight remote task.
	TaskStatus(ctx context.Context, handle string) (*TaskStatus, error)
	// Count returns the number of documents in an index.
	Count(ctx context.Context, index string) (int64, error)
	// EnsureEventPartition idempotently provisions the dated destination partition.
	EnsureEventPartition(ctx context.Context, day time.Time) error
	// MaintainAliases repoints the read/write aliases at the new index generation.
	MaintainAliases(ctx context.Context) error
}
