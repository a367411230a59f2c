package directory

import (
	"context"
	"fmt"
	"strings"

	"adjutant.org/internal/action"
	"adjutant.org/internal/password"
)

// Actions performs administrative operations against Active Directory
// through the same PowerShell Runner the searcher uses. It satisfies both
// action.Executor and action.PasswordResetter.
type Actions struct {
	runner      Runner
	genPassword func() string
}

var (
	_ action.Executor         = (*Actions)(nil)
	_ action.PasswordResetter = (*Actions)(nil)
)

func NewActions(runner Runner) *Actions {
	return &Actions{
		runner:      runner,
		genPassword: func() string { return password.Generate(12) },
	}
}

// Perform dispatches a deferred job type to the matching directory call.
func (a *Actions) Perform(ctx context.Context, jobType, handle string) error {
	switch jobType {
	case action.TypeDisableAccount:
		return a.DisableAccount(ctx, handle)
	case action.TypeResetPassword:
		_, err := a.ResetPassword(ctx, handle)
		return err
	default:
		return fmt.Errorf("unknown job type %q", jobType)
	}
}

// ResetPassword sets a fresh generated password on the account and forces a
// change at next logon. The new password is returned to the caller and is
// not persisted anywhere.
func (a *Actions) ResetPassword(ctx context.Context, handle string) (string, error) {
	newPwd := a.genPassword()
	script := fmt.Sprintf(`
		Import-Module ActiveDirectory;
		$sam = '%s';
		$pwd = ConvertTo-SecureString '%s' -AsPlainText -Force;
		Set-ADAccountPassword -Identity $sam -Reset -NewPassword $pwd;
		Set-ADUser -Identity $sam -ChangePasswordAtLogon $true;
		Write-Output "OK"
	`, psQuote(handle), psQuote(newPwd))

	out, err := a.runner.Run(ctx, script)
	if err != nil {
		return "", fmt.Errorf("reset password for %s: %w", handle, err)
	}
	if !strings.Contains(out, "OK") {
		return "", fmt.Errorf("reset password for %s: unexpected output %q", handle, strings.TrimSpace(out))
	}
	return newPwd, nil
}

// DisableAccount disables the account immediately.
func (a *Actions) DisableAccount(ctx context.Context, handle string) error {
	script := fmt.Sprintf(`
		Import-Module ActiveDirectory;
		Disable-ADAccount -Identity '%s';
		Write-Output "OK"
	`, psQuote(handle))

	out, err := a.runner.Run(ctx, script)
	if err != nil {
		return fmt.Errorf("disable account %s: %w", handle, err)
	}
	if !strings.Contains(out, "OK") {
		return fmt.Errorf("disable account %s: unexpected output %q", handle, strings.TrimSpace(out))
	}
	return nil
}
