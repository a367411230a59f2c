package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotOperator is returned when removing an id that is not registered.
var ErrNotOperator = errors.New("operator not registered")

// Registry answers who is allowed to drive the service. The superadmin is
// configured out of band and is not stored here.
type Registry interface {
	IsOperator(ctx context.Context, id string) (bool, error)
	Add(ctx context.Context, id, addedBy string) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// InMemoryRegistry keeps the operator set in memory. Used in tests and in
// deployments that run without Postgres.
type InMemoryRegistry struct {
	mu  sync.RWMutex
	ids map[string]string // id -> who added it
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{ids: make(map[string]string)}
}

func (r *InMemoryRegistry) IsOperator(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[normalizeID(id)]
	return ok, nil
}

func (r *InMemoryRegistry) Add(_ context.Context, id, addedBy string) error {
	id = normalizeID(id)
	if id == "" {
		return errors.New("operator id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; !ok {
		r.ids[id] = addedBy
	}
	return nil
}

func (r *InMemoryRegistry) Remove(_ context.Context, id string) error {
	id = normalizeID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; !ok {
		return ErrNotOperator
	}
	delete(r.ids, id)
	return nil
}

func (r *InMemoryRegistry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// RolesFor computes effective roles for an operator id: the configured
// superadmin gets both roles, registered operators get admin, everyone else
// gets none.
func RolesFor(ctx context.Context, reg Registry, superadmin, id string) ([]string, error) {
	id = normalizeID(id)
	if id == "" {
		return nil, nil
	}
	if superadmin != "" && id == normalizeID(superadmin) {
		return []string{RoleSuperadmin, RoleAdmin}, nil
	}
	if reg == nil {
		return nil, nil
	}
	ok, err := reg.IsOperator(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []string{RoleAdmin}, nil
}
