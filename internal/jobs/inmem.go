package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"adjutant.org/internal/ids"
)

// InMemory implements Store without persistence. It backs tests and local
// development; production wiring uses the PG store.
type InMemory struct {
	mu   sync.Mutex
	byID map[string]*Job
	live map[string]string // liveKey -> job id
	now  func() time.Time
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		byID: make(map[string]*Job),
		live: make(map[string]string),
		now:  time.Now,
	}
}

func (s *InMemory) Create(ctx context.Context, job Job) (Job, error) {
	if err := validate(job); err != nil {
		return Job{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := liveKey(job.TargetHandle, job.RunAt)
	if id, ok := s.live[key]; ok {
		existing := s.byID[id]
		existing.CreatedBy = job.CreatedBy
		existing.Metadata = cloneMeta(job.Metadata)
		existing.UpdatedAt = s.now().UTC()
		return *existing, nil
	}

	stored := job
	stored.ID = ids.New()
	stored.Status = StatusScheduled
	stored.Metadata = cloneMeta(job.Metadata)
	stored.CreatedAt = s.now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	s.byID[stored.ID] = &stored
	s.live[key] = stored.ID
	return stored, nil
}

func (s *InMemory) Claim(ctx context.Context, id string) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok || job.Status != StatusScheduled {
		return Job{}, false, nil
	}
	job.Status = StatusInProgress
	job.UpdatedAt = s.now().UTC()
	return *job, true, nil
}

func (s *InMemory) MarkDone(ctx context.Context, id string) error {
	return s.finish(id, StatusDone, "")
}

func (s *InMemory) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.finish(id, StatusFailed, reason)
}

func (s *InMemory) finish(id string, status Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok || (job.Status != StatusScheduled && job.Status != StatusInProgress) {
		return nil
	}
	job.Status = status
	job.LastError = reason
	job.UpdatedAt = s.now().UTC()
	delete(s.live, liveKey(job.TargetHandle, job.RunAt))
	return nil
}

func (s *InMemory) ListScheduled(ctx context.Context) ([]Job, error) {
	return s.list(StatusScheduled), nil
}

func (s *InMemory) ListLive(ctx context.Context) ([]Job, error) {
	return s.list(StatusScheduled, StatusInProgress), nil
}

// Get returns a copy of the job, for tests.
func (s *InMemory) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (s *InMemory) list(statuses ...Status) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	for _, job := range s.byID {
		for _, st := range statuses {
			if job.Status == st {
				out = append(out, *job)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RunAt.Equal(out[j].RunAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RunAt.Before(out[j].RunAt)
	})
	return out
}

func cloneMeta(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
