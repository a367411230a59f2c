package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"adjutant.org/internal/action"
	"adjutant.org/internal/audit"
	"adjutant.org/internal/obs"
)

const defaultExecTimeout = 2 * time.Minute

// Scheduler keeps one in-process timer per live job and invokes the
// external action executor when a job comes due. A job is executed at most
// once: firing first claims the row (SCHEDULED → IN_PROGRESS) and anything
// that loses the claim walks away. The store lock is never held across the
// external call.
type Scheduler struct {
	store   Store
	exec    action.Executor
	auditor audit.Recorder

	now         func() time.Time
	execTimeout time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// SchedulerOption configures Scheduler behavior.
type SchedulerOption func(*Scheduler)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithExecTimeout bounds a single external action invocation. A timeout is
// translated into a FAILED transition, never left pending.
func WithExecTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.execTimeout = d
		}
	}
}

func NewScheduler(store Store, exec action.Executor, auditor audit.Recorder, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:       store,
		exec:        exec,
		auditor:     auditor,
		now:         time.Now,
		execTimeout: defaultExecTimeout,
		timers:      make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule durably persists the job and then arms its timer. The write is a
// precondition for arming: a persistence failure returns the error and no
// timer exists afterwards.
func (s *Scheduler) Schedule(ctx context.Context, job Job) (Job, error) {
	created, err := s.store.Create(ctx, job)
	if err != nil {
		return Job{}, fmt.Errorf("persist job: %w", err)
	}
	// Create may have collapsed onto an IN_PROGRESS row whose external
	// call is outstanding; re-arming it would risk a duplicate invocation.
	if created.Status == StatusScheduled {
		s.armAfter(created.ID, created.RunAt.Sub(s.now()))
	}
	return created, nil
}

// Arm registers a timer for an already-persisted job, replacing any
// existing timer for the same job id.
func (s *Scheduler) Arm(job Job) {
	s.armAfter(job.ID, job.RunAt.Sub(s.now()))
}

func (s *Scheduler) armAfter(id string, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

// Close stops all armed timers. In-flight executions finish on their own.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	ctx := context.Background()
	job, ok, err := s.store.Claim(ctx, id)
	if err != nil {
		// The row stays SCHEDULED; recovery re-arms it on the next start.
		obs.LogEvent("error", "job claim failed", map[string]any{
			"job_id": id, "error": err.Error(),
		})
		return
	}
	if !ok {
		// Already transitioned (manual override or a duplicate timer).
		return
	}

	obs.JobStarted()
	defer obs.JobFinished()

	execCtx, cancel := context.WithTimeout(ctx, s.execTimeout)
	err = s.perform(execCtx, job)
	cancel()

	if err != nil {
		if mErr := s.store.MarkFailed(ctx, id, err.Error()); mErr != nil {
			obs.LogEvent("error", "job status update failed", map[string]any{
				"job_id": id, "error": mErr.Error(),
			})
		}
		obs.JobExecuted(job.Type, "failed")
		audit.Record(ctx, s.auditor, audit.Entry{
			Action: auditAction(job.Type),
			Target: job.TargetHandle,
			Details: map[string]any{
				"job_id":  id,
				"outcome": "failed",
				"reason":  err.Error(),
			},
		})
		obs.LogEvent("error", "job execution failed", map[string]any{
			"job_id": id, "target": job.TargetHandle, "error": err.Error(),
		})
		return
	}

	if mErr := s.store.MarkDone(ctx, id); mErr != nil {
		obs.LogEvent("error", "job status update failed", map[string]any{
			"job_id": id, "error": mErr.Error(),
		})
	}
	obs.JobExecuted(job.Type, "done")
	audit.Record(ctx, s.auditor, audit.Entry{
		Action: auditAction(job.Type),
		Target: job.TargetHandle,
		Details: map[string]any{
			"job_id":  id,
			"outcome": "done",
		},
	})
	obs.LogEvent("info", "job executed", map[string]any{
		"job_id": id, "target": job.TargetHandle, "job_type": job.Type,
	})
}

// perform shields the scheduler from a panicking executor.
func (s *Scheduler) perform(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return s.exec.Perform(ctx, job.Type, job.TargetHandle)
}

func auditAction(jobType string) string {
	return strings.ToLower(jobType)
}
