// Package action defines the capability boundary for operations performed
// against the external directory. The production implementation lives in
// internal/directory; Noop is selected by configuration for dry runs and
// tests.
package action

import (
	"context"

	"adjutant.org/internal/obs"
	"adjutant.org/internal/password"
)

// Job types understood by the executor. Persisted in job rows, so the
// values are part of the storage contract.
const (
	TypeResetPassword  = "RESET_PASSWORD"
	TypeDisableAccount = "DISABLE_ACCOUNT"
)

// Executor performs a directory action against a resolved account handle.
// Implementations must honour ctx cancellation; a timeout is reported as an
// ordinary error.
type Executor interface {
	Perform(ctx context.Context, jobType, handle string) error
}

// PasswordResetter resets an account password and returns the generated
// value, which is shown to the requesting operator exactly once.
type PasswordResetter interface {
	ResetPassword(ctx context.Context, handle string) (string, error)
}

// Noop implements both capabilities without touching any directory. Every
// call succeeds and is logged.
type Noop struct{}

func (Noop) Perform(ctx context.Context, jobType, handle string) error {
	obs.LogEvent("info", "noop action executed", map[string]any{
		"job_type": jobType,
		"target":   handle,
	})
	return nil
}

func (Noop) ResetPassword(ctx context.Context, handle string) (string, error) {
	obs.LogEvent("info", "noop password reset", map[string]any{"target": handle})
	return password.Generate(12), nil
}
