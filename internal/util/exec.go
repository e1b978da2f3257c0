package util

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/markusressel/hddfan/internal/ui"
)

// SafeCmdExecution runs the given executable, after checking that it cannot be tampered with by
// non-root users, and returns its trimmed stdout.
// The call is aborted when ctx is cancelled or the timeout is reached.
// If the command exits with a non-zero status, the returned *exec.ExitError is
// accompanied by whatever the command wrote to stdout.
func SafeCmdExecution(ctx context.Context, executable string, args []string, timeout time.Duration) (string, error) {
	if _, err := CheckFilePermissionsForExecution(executable); err != nil {
		return "", fmt.Errorf("cannot execute %s: %w", executable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, executable, args...)
	out, err := cmd.Output()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ui.Warning("Command timed out: %s", executable)
		return "", fmt.Errorf("command %s timed out after %s", executable, timeout)
	}

	if err != nil {
		ui.Debug("Command failed to execute: %s %v: %v", executable, args, err)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return strings.Trim(string(out), "\n"), err
		}
		return "", err
	}

	return strings.Trim(string(out), "\n"), nil
}
