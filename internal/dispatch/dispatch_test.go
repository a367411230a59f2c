package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"adjutant.org/internal/action"
	"adjutant.org/internal/audit"
	"adjutant.org/internal/directory"
	"adjutant.org/internal/intent"
	"adjutant.org/internal/jobs"
	"adjutant.org/internal/mailintake"
	"adjutant.org/internal/session"
)

type fakeResolver struct {
	results []directory.Identity
	queries []string
}

func (f *fakeResolver) Resolve(_ context.Context, query string, _ int) []directory.Identity {
	f.queries = append(f.queries, query)
	return f.results
}

type fakeScheduler struct {
	jobs []jobs.Job
	err  error
}

func (f *fakeScheduler) Schedule(_ context.Context, job jobs.Job) (jobs.Job, error) {
	if f.err != nil {
		return jobs.Job{}, f.err
	}
	job.ID = "job-1"
	job.Status = jobs.StatusScheduled
	f.jobs = append(f.jobs, job)
	return job, nil
}

type fakeResetter struct {
	handles []string
	err     error
}

func (f *fakeResetter) ResetPassword(_ context.Context, handle string) (string, error) {
	f.handles = append(f.handles, handle)
	if f.err != nil {
		return "", f.err
	}
	return "Xk9!mQ2pLr4z", nil
}

type fixture struct {
	svc      *Service
	resolver *fakeResolver
	sched    *fakeScheduler
	resetter *fakeResetter
	sessions *session.Manager
	auditor  *audit.InMemory
}

func newFixture(results []directory.Identity) *fixture {
	clock := func() time.Time {
		return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	}
	f := &fixture{
		resolver: &fakeResolver{results: results},
		sched:    &fakeScheduler{},
		resetter: &fakeResetter{},
		sessions: session.NewManager(),
		auditor:  audit.NewInMemory(),
	}
	rules := intent.NewRules(time.UTC).WithClock(clock)
	f.svc = NewService(rules, f.resolver, f.sessions, f.sched, f.resetter, f.auditor,
		time.UTC, WithClock(clock))
	return f
}

func TestResetWithUniqueCandidate(t *testing.T) {
	f := newFixture([]directory.Identity{{Handle: "i.ivanov", DisplayName: "Ivanov I."}})

	out, err := f.svc.HandleText(context.Background(), "op-1", "смени пароль Иванов")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if out.Kind != KindDone || out.Password == "" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(f.resetter.handles) != 1 || f.resetter.handles[0] != "i.ivanov" {
		t.Fatalf("resetter calls: %v", f.resetter.handles)
	}
	if f.sessions.Len() != 0 {
		t.Fatal("singleton candidate must not open a session")
	}

	entries := f.auditor.Entries()
	if len(entries) != 1 || entries[0].Action != "reset_password" || entries[0].Actor != "op-1" {
		t.Fatalf("audit trail: %+v", entries)
	}
}

func TestDisableSchedulesAtFourPM(t *testing.T) {
	f := newFixture([]directory.Identity{{Handle: "m.ivanova", DisplayName: "Ivanova M."}})

	out, err := f.svc.HandleText(context.Background(), "op-1", "заблокируй Иванова 05.09.2025")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if out.Kind != KindDone || out.Job == nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	want := time.Date(2025, 9, 5, 16, 0, 0, 0, time.UTC)
	job := f.sched.jobs[0]
	if !job.RunAt.Equal(want) {
		t.Fatalf("run at %v, want %v", job.RunAt, want)
	}
	if job.Type != action.TypeDisableAccount || job.CreatedBy != "op-1" {
		t.Fatalf("job attribution: %+v", job)
	}
	if job.Metadata["source"] != "chat" {
		t.Fatalf("metadata: %+v", job.Metadata)
	}
}

func TestDisableWithoutDateDefaultsToToday(t *testing.T) {
	f := newFixture([]directory.Identity{{Handle: "s.petrov"}})

	if _, err := f.svc.HandleText(context.Background(), "op-1", "отключи Петров"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	want := time.Date(2025, 9, 1, 16, 0, 0, 0, time.UTC)
	if got := f.sched.jobs[0].RunAt; !got.Equal(want) {
		t.Fatalf("run at %v, want %v", got, want)
	}
}

func TestAmbiguousQueryNeedsChoice(t *testing.T) {
	f := newFixture([]directory.Identity{
		{Handle: "n.ivanova", DisplayName: "Ivanova N."},
		{Handle: "m.ivanova", DisplayName: "Ivanova M."},
	})

	out, err := f.svc.HandleText(context.Background(), "op-1", "заблокируй Иванова завтра")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if out.Kind != KindNeedsChoice || out.Token == "" || len(out.Candidates) != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(f.sched.jobs) != 0 {
		t.Fatal("nothing may be scheduled before the operator picks")
	}

	sel, err := f.svc.HandleSelection(context.Background(), "op-1", out.Token, "m.ivanova")
	if err != nil {
		t.Fatalf("HandleSelection: %v", err)
	}
	if sel.Kind != KindDone || sel.Job == nil {
		t.Fatalf("unexpected selection outcome: %+v", sel)
	}
	job := f.sched.jobs[0]
	if job.TargetHandle != "m.ivanova" {
		t.Fatalf("wrong target: %+v", job)
	}
	// The date extracted from the original text survives the round trip.
	want := time.Date(2025, 9, 2, 16, 0, 0, 0, time.UTC)
	if !job.RunAt.Equal(want) {
		t.Fatalf("run at %v, want %v", job.RunAt, want)
	}

	if _, err := f.svc.HandleSelection(context.Background(), "op-1", out.Token, "m.ivanova"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("token must be single-use, got %v", err)
	}
}

func TestUnrecognisedTextSkipsResolution(t *testing.T) {
	f := newFixture(nil)
	out, err := f.svc.HandleText(context.Background(), "op-1", "как дела?")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if out.Kind != KindUnrecognised {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(f.resolver.queries) != 0 {
		t.Fatal("resolver must not be consulted without intent")
	}
}

func TestNobodyMatches(t *testing.T) {
	f := newFixture(nil)
	out, err := f.svc.HandleText(context.Background(), "op-1", "заблокируй Несуществующий")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if out.Kind != KindNotFound {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestForgedSelectionToken(t *testing.T) {
	f := newFixture(nil)
	if _, err := f.svc.HandleSelection(context.Background(), "op-1", "bogus", "x"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestResetFailureIsAudited(t *testing.T) {
	f := newFixture([]directory.Identity{{Handle: "i.ivanov"}})
	f.resetter.err = errors.New("directory unreachable")

	_, err := f.svc.HandleText(context.Background(), "op-1", "reset password ivanov")
	if err == nil || !strings.Contains(err.Error(), "directory unreachable") {
		t.Fatalf("expected propagated failure, got %v", err)
	}
	entries := f.auditor.Entries()
	if len(entries) != 1 || entries[0].Details["outcome"] != "failed" {
		t.Fatalf("audit trail: %+v", entries)
	}
}

func TestOffboardingTakesTopCandidate(t *testing.T) {
	f := newFixture([]directory.Identity{
		{Handle: "m.ivanova", DisplayName: "Ivanova M."},
		{Handle: "n.ivanova", DisplayName: "Ivanova N."},
	})
	date := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)

	out, err := f.svc.HandleOffboarding(context.Background(), mailintake.OffboardEvent{
		Name: "Иванова Мария", SamHint: "m.ivanova", Date: &date,
	})
	if err != nil {
		t.Fatalf("HandleOffboarding: %v", err)
	}
	if out.Kind != KindDone || out.Job == nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	job := f.sched.jobs[0]
	if job.TargetHandle != "m.ivanova" || job.Metadata["source"] != "mail" {
		t.Fatalf("job: %+v", job)
	}
	if job.CreatedBy != "" {
		t.Fatalf("mail events are system-originated, got creator %q", job.CreatedBy)
	}
	want := time.Date(2025, 9, 5, 16, 0, 0, 0, time.UTC)
	if !job.RunAt.Equal(want) {
		t.Fatalf("run at %v, want %v", job.RunAt, want)
	}

	entries := f.auditor.Entries()
	if len(entries) != 1 || entries[0].Actor != "" || entries[0].Details["source"] != "mail" {
		t.Fatalf("audit trail: %+v", entries)
	}
}

func TestOffboardingUnknownTarget(t *testing.T) {
	f := newFixture(nil)
	out, err := f.svc.HandleOffboarding(context.Background(), mailintake.OffboardEvent{Name: "Ghost"})
	if err != nil {
		t.Fatalf("HandleOffboarding: %v", err)
	}
	if out.Kind != KindNotFound {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
