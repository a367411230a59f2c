package jobs

import (
	"context"
	"testing"
	"time"
)

func TestCreateIdempotentUpsert(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	runAt := time.Date(2025, 1, 10, 16, 0, 0, 0, time.UTC)

	first, err := store.Create(ctx, Job{
		Type: "DISABLE_ACCOUNT", TargetHandle: "alice", RunAt: runAt, CreatedBy: "op-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := store.Create(ctx, Job{
		Type: "DISABLE_ACCOUNT", TargetHandle: "alice", RunAt: runAt, CreatedBy: "op-2",
	})
	if err != nil {
		t.Fatalf("Create (duplicate): %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate submission created a second live row: %s vs %s", first.ID, second.ID)
	}
	if second.CreatedBy != "op-2" {
		t.Fatalf("re-submission should replace attribution, got %q", second.CreatedBy)
	}

	scheduled, err := store.ListScheduled(ctx)
	if err != nil {
		t.Fatalf("ListScheduled: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("expected exactly one live SCHEDULED row, got %d", len(scheduled))
	}
}

func TestCreateAfterTerminalMakesNewJob(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	runAt := time.Date(2025, 1, 10, 16, 0, 0, 0, time.UTC)

	first, _ := store.Create(ctx, Job{Type: "DISABLE_ACCOUNT", TargetHandle: "alice", RunAt: runAt})
	if _, ok, _ := store.Claim(ctx, first.ID); !ok {
		t.Fatal("claim failed")
	}
	if err := store.MarkDone(ctx, first.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	second, err := store.Create(ctx, Job{Type: "DISABLE_ACCOUNT", TargetHandle: "alice", RunAt: runAt})
	if err != nil {
		t.Fatalf("Create after DONE: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("terminal row was resurrected instead of creating a new job")
	}
}

func TestMarkDoneIdempotent(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	job, _ := store.Create(ctx, Job{Type: "DISABLE_ACCOUNT", TargetHandle: "bob", RunAt: time.Now().Add(time.Hour)})

	if _, ok, _ := store.Claim(ctx, job.ID); !ok {
		t.Fatal("claim failed")
	}
	if err := store.MarkDone(ctx, job.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	// Repeats and contradicting transitions are all no-ops.
	if err := store.MarkDone(ctx, job.ID); err != nil {
		t.Fatalf("second MarkDone: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "late failure"); err != nil {
		t.Fatalf("MarkFailed after DONE: %v", err)
	}
	got, _ := store.Get(job.ID)
	if got.Status != StatusDone {
		t.Fatalf("status moved backward: %s", got.Status)
	}
}

func TestClaimOnlySucceedsOnce(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	job, _ := store.Create(ctx, Job{Type: "DISABLE_ACCOUNT", TargetHandle: "carol", RunAt: time.Now().Add(time.Hour)})

	if _, ok, err := store.Claim(ctx, job.ID); err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Claim(ctx, job.ID); err != nil || ok {
		t.Fatalf("second claim must lose: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := store.Claim(ctx, "no-such-id"); ok {
		t.Fatal("claim of unknown id must fail")
	}
}

func TestListScheduledOrdersByRunAt(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)

	for _, d := range []time.Duration{48 * time.Hour, 0, 24 * time.Hour} {
		if _, err := store.Create(ctx, Job{Type: "DISABLE_ACCOUNT", TargetHandle: "u" + d.String(), RunAt: base.Add(d)}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	scheduled, _ := store.ListScheduled(ctx)
	if len(scheduled) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(scheduled))
	}
	for i := 1; i < len(scheduled); i++ {
		if scheduled[i].RunAt.Before(scheduled[i-1].RunAt) {
			t.Fatalf("jobs out of order: %v", scheduled)
		}
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	store := NewInMemory()
	if _, err := store.Create(context.Background(), Job{Type: "DISABLE_ACCOUNT"}); err == nil {
		t.Fatal("expected validation error")
	}
}
