// Package jobs owns the durable deferred-action store, the in-process
// scheduler that fires due jobs, and the startup recovery that reconciles
// the two after a restart.
package jobs

import (
	"context"
	"errors"
	"time"
)

// Status is the persisted lifecycle state of a job. Transitions only move
// forward: SCHEDULED → IN_PROGRESS → DONE | FAILED. IN_PROGRESS is the
// transient claim held while the external directory call is outstanding.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
)

// Job is the durable unit of deferred work. The idempotent identity of a
// live job is (TargetHandle, RunAt): re-submitting the same pair replaces
// the earlier submission instead of duplicating it. Terminal rows are kept
// forever for the audit history.
type Job struct {
	ID           string            `json:"id"`
	Type         string            `json:"job_type"`
	TargetHandle string            `json:"target_handle"`
	RunAt        time.Time         `json:"run_at"`
	Status       Status            `json:"status"`
	CreatedBy    string            `json:"created_by"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

var (
	// ErrInvalidJob rejects jobs missing a target or a run time.
	ErrInvalidJob = errors.New("job requires a target handle and a run time")
)

// Store persists jobs. All implementations must be safe for concurrent use
// from request handlers and the scheduler's timer goroutines.
type Store interface {
	// Create durably writes a job. If a live job already exists for the
	// same (target_handle, run_at) the existing row is updated in place
	// and returned; no second live row ever appears.
	Create(ctx context.Context, job Job) (Job, error)

	// Claim atomically moves a SCHEDULED job to IN_PROGRESS and returns
	// it. ok is false when the job is absent or no longer SCHEDULED, which
	// callers treat as "someone else got here first" and skip.
	Claim(ctx context.Context, id string) (job Job, ok bool, err error)

	// MarkDone / MarkFailed finish a live job. Both are no-ops (not
	// errors) when the job has already reached a terminal state.
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error

	// ListScheduled returns SCHEDULED jobs ordered by ascending run_at.
	ListScheduled(ctx context.Context) ([]Job, error)

	// ListLive returns SCHEDULED and IN_PROGRESS jobs, for recovery.
	ListLive(ctx context.Context) ([]Job, error)
}

// liveKey is the idempotent identity of a pending submission.
func liveKey(handle string, runAt time.Time) string {
	return handle + "@" + runAt.UTC().Format(time.RFC3339)
}

func validate(job Job) error {
	if job.TargetHandle == "" || job.RunAt.IsZero() || job.Type == "" {
		return ErrInvalidJob
	}
	return nil
}
