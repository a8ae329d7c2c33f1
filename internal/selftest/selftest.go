// Package selftest smoke-tests an installed binary by running it with a
// version flag and requiring a zero exit code.
package selftest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// WaitDelay is the time to wait after sending SIGINT before sending SIGKILL.
const WaitDelay = 5 * time.Second

// DefaultArgs is the version query the self-test runs.
var DefaultArgs = []string{"--version"}

// ErrFailed is returned when the binary exits non-zero or cannot be started.
var ErrFailed = errors.New("self-test failed")

// Error describes a failed self-test.
type Error struct {
	Path     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	cmd := strings.TrimSpace(e.Path + " " + strings.Join(e.Args, " "))
	if e.ExitCode >= 0 {
		msg := fmt.Sprintf("%s: %s exited with code %d", ErrFailed, cmd, e.ExitCode)
		if out := strings.TrimSpace(e.Output); out != "" {
			msg += "\n" + out
		}
		return msg
	}
	return fmt.Sprintf("%s: %s: %v", ErrFailed, cmd, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrFailed, e.Err} }

// Result is the output of a passing self-test.
type Result struct {
	Path   string
	Output string
}

// Version returns the first line of output, which is where CLIs print their version.
func (r Result) Version() string {
	line, _, _ := strings.Cut(strings.TrimSpace(r.Output), "\n")
	return strings.TrimSpace(line)
}

// Run executes binPath with args (DefaultArgs when empty).
// Output is captured and attached to the error on failure.
// Canceling ctx interrupts the binary gracefully: SIGINT first, then SIGKILL after WaitDelay.
func Run(ctx context.Context, binPath string, args ...string) (Result, error) {
	if len(args) == 0 {
		args = DefaultArgs
	}
	if _, err := os.Stat(binPath); err != nil {
		return Result{}, &Error{Path: binPath, Args: args, ExitCode: -1, Err: err}
	}

	cmd := exec.CommandContext(ctx, binPath, args...)
	cmd.WaitDelay = WaitDelay
	setGracefulShutdown(cmd)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err == nil {
		return Result{Path: binPath, Output: buf.String()}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, &Error{Path: binPath, Args: args, ExitCode: -1, Output: buf.String(), Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{}, &Error{Path: binPath, Args: args, ExitCode: exitErr.ExitCode(), Output: buf.String(), Err: err}
	}
	return Result{}, &Error{Path: binPath, Args: args, ExitCode: -1, Output: buf.String(), Err: err}
}
