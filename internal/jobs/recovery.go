package jobs

import (
	"context"
	"time"

	"adjutant.org/internal/audit"
	"adjutant.org/internal/obs"
)

const (
	// Overdue jobs found at startup run after a short fixed delay rather
	// than immediately, and consecutive ones are staggered, so a backlog
	// does not stampede the directory the moment the process is up.
	defaultOverdueDelay = 5 * time.Second
	defaultStagger      = 500 * time.Millisecond
)

// Recovery reconciles the durable store with the scheduler's timer queue on
// startup. Restore must run before the service accepts new submissions.
type Recovery struct {
	store   Store
	sched   *Scheduler
	auditor audit.Recorder

	now          func() time.Time
	overdueDelay time.Duration
	stagger      time.Duration
}

// RecoveryOption configures Recovery.
type RecoveryOption func(*Recovery)

// WithRecoveryClock overrides the time source.
func WithRecoveryClock(fn func() time.Time) RecoveryOption {
	return func(r *Recovery) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithOverdueDelay overrides the fixed delay applied to overdue jobs.
func WithOverdueDelay(d time.Duration) RecoveryOption {
	return func(r *Recovery) {
		if d >= 0 {
			r.overdueDelay = d
		}
	}
}

// WithStagger overrides the spacing between consecutive overdue jobs.
func WithStagger(d time.Duration) RecoveryOption {
	return func(r *Recovery) {
		if d >= 0 {
			r.stagger = d
		}
	}
}

func NewRecovery(store Store, sched *Scheduler, auditor audit.Recorder, opts ...RecoveryOption) *Recovery {
	r := &Recovery{
		store:        store,
		sched:        sched,
		auditor:      auditor,
		now:          time.Now,
		overdueDelay: defaultOverdueDelay,
		stagger:      defaultStagger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore re-arms every live job. Calling it twice replaces timers instead
// of duplicating them, so a restart loop is harmless. One bad row never
// aborts the rest: it is logged and skipped.
//
// Jobs found IN_PROGRESS were interrupted mid-invocation by the previous
// shutdown. Whether the directory call went through is unknowable, so they
// go to FAILED for an operator to re-submit rather than risking a second
// invocation.
func (r *Recovery) Restore(ctx context.Context) error {
	live, err := r.store.ListLive(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	overdue := 0
	for _, job := range live {
		if job.RunAt.IsZero() || job.ID == "" {
			obs.LogEvent("error", "skipping corrupt job row", map[string]any{
				"job_id": job.ID, "target": job.TargetHandle,
			})
			continue
		}

		switch job.Status {
		case StatusInProgress:
			reason := "interrupted by restart"
			if mErr := r.store.MarkFailed(ctx, job.ID, reason); mErr != nil {
				obs.LogEvent("error", "failed to fail interrupted job", map[string]any{
					"job_id": job.ID, "error": mErr.Error(),
				})
				continue
			}
			obs.JobExecuted(job.Type, "failed")
			audit.Record(ctx, r.auditor, audit.Entry{
				Action: auditAction(job.Type),
				Target: job.TargetHandle,
				Details: map[string]any{
					"job_id":  job.ID,
					"outcome": "failed",
					"reason":  reason,
				},
			})

		case StatusScheduled:
			if !job.RunAt.After(now) {
				r.sched.armAfter(job.ID, r.overdueDelay+time.Duration(overdue)*r.stagger)
				overdue++
			} else {
				r.sched.armAfter(job.ID, job.RunAt.Sub(now))
			}
		}
	}

	obs.LogEvent("info", "job recovery complete", map[string]any{
		"restored": len(live),
		"overdue":  overdue,
	})
	return nil
}
