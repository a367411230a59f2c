// Package audit keeps the append-only trail of administrative actions.
// Recording is best-effort relative to the operation it describes: a failed
// append is logged but never blocks or fails the primary action.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"adjutant.org/internal/ids"
	"adjutant.org/internal/obs"
)

// Entry is one immutable audit record. Actor is empty for system-originated
// actions (mail intake, the scheduler firing).
type Entry struct {
	ID      string         `json:"id"`
	At      time.Time      `json:"at"`
	Actor   string         `json:"actor,omitempty"`
	Action  string         `json:"action"`
	Target  string         `json:"target,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Recorder appends audit entries. Implementations must tolerate concurrent
// callers.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Record appends through rec and swallows the failure, logging it. Callers
// on the primary path use this instead of calling the Recorder directly.
func Record(ctx context.Context, rec Recorder, entry Entry) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, entry); err != nil {
		obs.LogEvent("error", "audit append failed", map[string]any{
			"action": entry.Action,
			"target": entry.Target,
			"error":  err.Error(),
		})
	}
}

// normalize fills generated fields and emits the structured audit log line.
func normalize(entry *Entry) error {
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		return errActionRequired
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	line := map[string]any{
		"ts":     entry.At.Format(time.RFC3339Nano),
		"type":   "audit",
		"action": entry.Action,
	}
	if entry.Actor != "" {
		line["actor"] = entry.Actor
	}
	if entry.Target != "" {
		line["target"] = entry.Target
	}
	if len(entry.Details) > 0 {
		line["details"] = entry.Details
	}
	obs.LogRequest(line)
	return nil
}

// InMemory keeps entries in a slice. Used in tests and as a last-resort
// recorder when no database is configured.
type InMemory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewInMemory() *InMemory { return &InMemory{} }

func (m *InMemory) Record(ctx context.Context, entry Entry) error {
	if err := normalize(&entry); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (m *InMemory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
