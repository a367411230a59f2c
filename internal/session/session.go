// Package session holds the short-lived state between "several identities
// match" and the operator picking one. Sessions are process-local on
// purpose: a crash loses only an in-flight disambiguation, never a
// scheduled job.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"adjutant.org/internal/directory"
)

// ActionKind discriminates what happens once an identity is settled.
type ActionKind string

const (
	KindReset   ActionKind = "RESET"
	KindDisable ActionKind = "DISABLE"
)

// PendingAction is the request waiting on a single resolved identity. It is
// created when intent is detected and consumed when the action dispatches.
type PendingAction struct {
	Kind         ActionKind
	Query        string
	RequestedBy  string
	ScheduledFor *time.Time
}

// ErrNotFound covers stale, forged, expired and already-consumed tokens
// alike; callers cannot distinguish them and must not be able to.
var ErrNotFound = errors.New("session not found")

type entry struct {
	pending    PendingAction
	candidates []directory.Identity
	openedAt   time.Time
}

// Manager is the in-process session table. Lookups never block on anything
// but the table mutex.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration // zero means sessions never expire
	now      func() time.Time
}

// Option configures Manager.
type Option func(*Manager)

// WithTTL bounds session lifetime. The reference behaviour keeps sessions
// until consumed, so the default manager applies no TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithNow overrides the time source, for tests.
func WithNow(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open stores the pending action with its candidate set and returns an
// opaque single-use token. Callers must not open a session for a singleton
// candidate set: one strong match proceeds directly, without a round trip.
func (m *Manager) Open(pending PendingAction, candidates []directory.Identity) string {
	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = entry{
		pending:    pending,
		candidates: append([]directory.Identity(nil), candidates...),
		openedAt:   m.now(),
	}
	return token
}

// Resolve consumes the token and returns the pending action bound to the
// chosen identity. The session is removed on any lookup — even when the
// chosen handle does not belong to the candidate set — so a token can never
// be probed twice.
func (m *Manager) Resolve(token, chosenHandle string) (PendingAction, directory.Identity, error) {
	m.mu.Lock()
	e, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()

	if !ok {
		return PendingAction{}, directory.Identity{}, ErrNotFound
	}
	if m.ttl > 0 && m.now().Sub(e.openedAt) > m.ttl {
		return PendingAction{}, directory.Identity{}, ErrNotFound
	}
	for _, cand := range e.candidates {
		if strings.EqualFold(cand.Handle, chosenHandle) {
			return e.pending, cand, nil
		}
	}
	return PendingAction{}, directory.Identity{}, ErrNotFound
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
