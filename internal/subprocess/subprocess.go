// Package subprocess runs the external engine and player commands.
package subprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// maxStderr bounds how much stderr is kept for diagnostics.
	maxStderr = 4096
	// waitDelay bounds how long output pipes are drained after a process
	// is killed.
	waitDelay = time.Second
)

// StatusError is returned when a command exits with a non-zero status or
// cannot be started.
type StatusError struct {
	Command string
	Status  int
	Stderr  string
	Err     error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.Status)
	if e.Status < 0 && e.Err != nil {
		msg = fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + lastLine(stderr)
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NewStatusError builds a StatusError from the error returned by
// exec.Cmd.Run. Errors that are not exit errors carry status -1.
func NewStatusError(command string, err error, stderr string) *StatusError {
	status := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status = exitErr.ExitCode()
	}
	return &StatusError{Command: command, Status: status, Stderr: stderr, Err: err}
}

// ExitStatus returns the exit status carried by err, 0 for nil and -1 when
// err carries no status.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Options describes one command invocation.
type Options struct {
	// Args is the full argument vector; Args[0] is the executable.
	Args []string
	// Stdin is wired to the process before it starts. Nil means no input.
	Stdin io.Reader
	// Timeout bounds the call when ctx has no deadline. Zero means none.
	Timeout time.Duration
	// Logger receives debug output. Nil uses the default logger.
	Logger *log.Logger
}

// Run executes the command and waits for it. A non-zero exit, a start
// failure or a cancelled context yields a *StatusError.
func Run(ctx context.Context, opts Options) error {
	if len(opts.Args) == 0 {
		return errors.New("no command given")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
	}

	cmd := exec.CommandContext(ctx, opts.Args[0], opts.Args[1:]...) //nolint:gosec
	// Stdin must be wired before Start.
	cmd.Stdin = opts.Stdin
	stderr := &tailBuffer{max: maxStderr}
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v: %w", opts.Timeout, err)
		}
		logger.Debug("Subprocess failed",
			"command", opts.Args[0],
			"args", opts.Args[1:],
			"duration", elapsed,
			"error", err)
		return NewStatusError(opts.Args[0], err, stderr.String())
	}

	logger.Debug("Subprocess executed",
		"command", opts.Args[0],
		"args", opts.Args[1:],
		"duration", elapsed)
	return nil
}

// LookPath reports an error naming the binary when it is not in PATH.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("binary '%s' not found in PATH: %w", name, err)
	}
	return path, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
