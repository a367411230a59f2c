// Package dispatch is the core request pipeline: classify free text, resolve
// the identity, then either act immediately (password reset), persist a
// deferred job (account disable), or ask the operator to pick a candidate.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adjutant.org/internal/action"
	"adjutant.org/internal/audit"
	"adjutant.org/internal/directory"
	"adjutant.org/internal/intent"
	"adjutant.org/internal/jobs"
	"adjutant.org/internal/mailintake"
	"adjutant.org/internal/obs"
	"adjutant.org/internal/session"
)

// Deactivations fire at 16:00 local time on the target date, end of the
// business day.
const disableHour = 16

// ErrSessionExpired is returned when a selection token is stale, forged or
// already consumed. The caller must restart from the free-text request.
var ErrSessionExpired = errors.New("selection session expired")

// Resolver is the identity lookup the pipeline depends on.
type Resolver interface {
	Resolve(ctx context.Context, query string, limit int) []directory.Identity
}

// Scheduler persists and arms deferred jobs.
type Scheduler interface {
	Schedule(ctx context.Context, job jobs.Job) (jobs.Job, error)
}

// Kind tells the caller what to render.
type Kind string

const (
	// KindDone carries the result of a completed action.
	KindDone Kind = "done"
	// KindNeedsChoice carries candidates and a single-use selection token.
	KindNeedsChoice Kind = "needs_choice"
	// KindNotFound means the query matched nobody.
	KindNotFound Kind = "not_found"
	// KindUnrecognised means no intent was detected in the text.
	KindUnrecognised Kind = "unrecognised"
)

// Candidate is one selectable identity.
type Candidate struct {
	Handle string `json:"handle"`
	Label  string `json:"label"`
}

// Outcome is the pipeline's answer to one request.
type Outcome struct {
	Kind       Kind        `json:"kind"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Token      string      `json:"token,omitempty"`
	// Password is set for a completed reset and is never persisted; this is
	// its only surfacing.
	Password string    `json:"password,omitempty"`
	Job      *jobs.Job `json:"job,omitempty"`
}

// Service wires the pipeline. All collaborators are injected.
type Service struct {
	classifier intent.Classifier
	resolver   Resolver
	sessions   *session.Manager
	sched      Scheduler
	resetter   action.PasswordResetter
	auditor    audit.Recorder

	now func() time.Time
	loc *time.Location
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(
	classifier intent.Classifier,
	resolver Resolver,
	sessions *session.Manager,
	sched Scheduler,
	resetter action.PasswordResetter,
	auditor audit.Recorder,
	loc *time.Location,
	opts ...Option,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		classifier: classifier,
		resolver:   resolver,
		sessions:   sessions,
		sched:      sched,
		resetter:   resetter,
		auditor:    auditor,
		now:        time.Now,
		loc:        loc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleText processes one free-text operator request.
func (s *Service) HandleText(ctx context.Context, operator, text string) (Outcome, error) {
	res := s.classifier.Classify(text)
	if res.Intent == intent.Unknown {
		return Outcome{Kind: KindUnrecognised}, nil
	}

	candidates := s.resolver.Resolve(ctx, res.Query, directory.DefaultLimit)
	if len(candidates) == 0 {
		return Outcome{Kind: KindNotFound}, nil
	}
	pending := session.PendingAction{
		Kind:         kindForIntent(res.Intent),
		Query:        res.Query,
		RequestedBy:  operator,
		ScheduledFor: res.When,
	}
	// A single candidate needs no round trip: the query was unambiguous.
	if len(candidates) == 1 {
		return s.execute(ctx, pending, candidates[0])
	}

	token := s.sessions.Open(pending, candidates)
	out := Outcome{Kind: KindNeedsChoice, Token: token}
	for _, c := range candidates {
		out.Candidates = append(out.Candidates, Candidate{Handle: c.Handle, Label: c.Label()})
	}
	return out, nil
}

// HandleSelection consumes a selection token and runs the pending action
// against the chosen identity.
func (s *Service) HandleSelection(ctx context.Context, operator, token, handle string) (Outcome, error) {
	pending, chosen, err := s.sessions.Resolve(token, handle)
	if err != nil {
		return Outcome{}, ErrSessionExpired
	}
	// The acting operator wins over whoever opened the session; in practice
	// they are the same principal.
	if operator != "" {
		pending.RequestedBy = operator
	}
	return s.execute(ctx, pending, chosen)
}

// HandleOffboarding schedules a deactivation from a parsed HR mail event.
// The top-ranked candidate wins without operator confirmation; there is no
// one to ask on this path.
func (s *Service) HandleOffboarding(ctx context.Context, ev mailintake.OffboardEvent) (Outcome, error) {
	query := ev.SamHint
	if query == "" {
		query = ev.Name
	}
	candidates := s.resolver.Resolve(ctx, query, directory.DefaultLimit)
	if len(candidates) == 0 {
		obs.LogEvent("warn", "offboarding target not found", map[string]any{
			"query": query,
		})
		return Outcome{Kind: KindNotFound}, nil
	}
	target := candidates[0]

	job, err := s.sched.Schedule(ctx, jobs.Job{
		Type:         action.TypeDisableAccount,
		TargetHandle: target.Handle,
		RunAt:        s.disableAt(ev.Date),
		Metadata: map[string]string{
			"source": "mail",
			"query":  query,
		},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("schedule offboarding: %w", err)
	}
	audit.Record(ctx, s.auditor, audit.Entry{
		Action: "schedule_disable",
		Target: target.Handle,
		Details: map[string]any{
			"job_id": job.ID,
			"run_at": job.RunAt.Format(time.RFC3339),
			"source": "mail",
		},
	})
	return Outcome{Kind: KindDone, Job: &job}, nil
}

func (s *Service) execute(ctx context.Context, pending session.PendingAction, target directory.Identity) (Outcome, error) {
	switch pending.Kind {
	case session.KindReset:
		return s.resetPassword(ctx, pending, target)
	case session.KindDisable:
		return s.scheduleDisable(ctx, pending, target)
	default:
		return Outcome{}, fmt.Errorf("unknown action kind %q", pending.Kind)
	}
}

func (s *Service) resetPassword(ctx context.Context, pending session.PendingAction, target directory.Identity) (Outcome, error) {
	pwd, err := s.resetter.ResetPassword(ctx, target.Handle)
	if err != nil {
		audit.Record(ctx, s.auditor, audit.Entry{
			Actor:  pending.RequestedBy,
			Action: "reset_password",
			Target: target.Handle,
			Details: map[string]any{
				"outcome": "failed",
				"reason":  err.Error(),
			},
		})
		return Outcome{}, fmt.Errorf("reset password for %s: %w", target.Handle, err)
	}
	audit.Record(ctx, s.auditor, audit.Entry{
		Actor:   pending.RequestedBy,
		Action:  "reset_password",
		Target:  target.Handle,
		Details: map[string]any{"outcome": "done"},
	})
	return Outcome{Kind: KindDone, Password: pwd}, nil
}

func (s *Service) scheduleDisable(ctx context.Context, pending session.PendingAction, target directory.Identity) (Outcome, error) {
	job, err := s.sched.Schedule(ctx, jobs.Job{
		Type:         action.TypeDisableAccount,
		TargetHandle: target.Handle,
		RunAt:        s.disableAt(pending.ScheduledFor),
		CreatedBy:    pending.RequestedBy,
		Metadata: map[string]string{
			"source": "chat",
			"query":  pending.Query,
		},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("schedule disable for %s: %w", target.Handle, err)
	}
	audit.Record(ctx, s.auditor, audit.Entry{
		Actor:  pending.RequestedBy,
		Action: "schedule_disable",
		Target: target.Handle,
		Details: map[string]any{
			"job_id": job.ID,
			"run_at": job.RunAt.Format(time.RFC3339),
			"source": "chat",
		},
	})
	return Outcome{Kind: KindDone, Job: &job}, nil
}

// disableAt maps an optional target date to the moment the deactivation
// fires: 16:00 local on that date, today when no date was given. A moment
// already in the past fires immediately.
func (s *Service) disableAt(when *time.Time) time.Time {
	base := s.now().In(s.loc)
	if when != nil {
		base = when.In(s.loc)
	}
	return time.Date(base.Year(), base.Month(), base.Day(), disableHour, 0, 0, 0, s.loc)
}

func kindForIntent(in intent.Intent) session.ActionKind {
	if in == intent.ResetPassword {
		return session.KindReset
	}
	return session.KindDisable
}
