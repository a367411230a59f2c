package directory

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a PowerShell script and returns its stdout. The production
// implementation shells out to a local powershell.exe; tests substitute a
// fake.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
}

// LocalRunner invokes PowerShell on the host the service runs on. Requires
// the ActiveDirectory module to be installed there.
type LocalRunner struct {
	// Binary overrides the executable name, default "powershell".
	Binary string
}

func (r LocalRunner) Run(ctx context.Context, script string) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "powershell"
	}
	cmd := exec.CommandContext(ctx, bin, "-NoProfile", "-NonInteractive", "-Command", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("powershell: %s", msg)
	}
	return stdout.String(), nil
}

// psQuote neutralises characters meaningful to PowerShell before a value is
// interpolated into a single-quoted string literal. Untrusted input must
// pass through here before script construction.
func psQuote(s string) string {
	s = strings.ReplaceAll(s, "`", "``")
	s = strings.ReplaceAll(s, "'", "''")
	// Strip control characters outright; no directory name contains them.
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
