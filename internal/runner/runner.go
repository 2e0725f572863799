// Package runner invokes the external compiler against a piece of source
// text with a wall-clock timeout and an output size cap.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// Defaults used when the corresponding Runner field is zero.
const (
	DefaultCompiler  = "./compiler"
	DefaultTimeout   = 10 * time.Second
	DefaultMaxOutput = 1 << 20 // 1 MB
	DefaultWaitDelay = 2 * time.Second
)

// Runner runs the compiler executable at Compiler as
// "<Compiler> <staging file>" and captures its output.
//
// Every call stages the source in its own temporary file, so concurrent
// calls do not interfere with each other.
type Runner struct {
	Compiler  string
	Timeout   time.Duration
	MaxOutput int // bytes, per stream
	// WaitDelay bounds how long Run waits for output pipes to close after
	// the process has been killed on timeout.
	WaitDelay time.Duration
	// TempDir is where staging files are created; empty means os.TempDir.
	TempDir string
	Logger  *slog.Logger
}

// Run stages source, runs the compiler on it and returns what it printed.
// The exit status is recorded but never treated as a failure.
//
// Errors are *NotFoundError when the executable does not exist,
// *TimeoutError when the process outlived Timeout and *SpawnError for any
// other failure to stage, start or talk to the process.
func (r *Runner) Run(ctx context.Context, source string) (*Result, error) {
	compiler := r.compiler()
	log := r.logger()

	// Best-effort: the executable may still vanish before exec.
	if _, err := os.Stat(compiler); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: compiler}
		}
		return nil, &SpawnError{Err: fmt.Errorf("checking %s: %w", compiler, err)}
	}

	staged, cleanup, err := r.stage(source)
	if err != nil {
		return nil, &SpawnError{Err: err}
	}
	defer cleanup()

	timeout := r.timeout()
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, ErrTimeout)
	defer cancel()

	runID := uuid.New().String()
	maxOutput := r.maxOutput()

	cmd := exec.CommandContext(ctx, compiler, staged)
	cmd.WaitDelay = r.waitDelay()

	var stdout, stderr bytes.Buffer
	outW := &limitWriter{buf: &stdout, limit: maxOutput}
	errW := &limitWriter{buf: &stderr, limit: maxOutput}
	cmd.Stdout = outW
	cmd.Stderr = errW

	log.Debug("starting compiler", "run_id", runID, "compiler", compiler, "input", staged, "bytes", len(source))
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	// Only our own deadline is a timeout; a caller's deadline or
	// cancellation is reported as a spawn failure.
	if context.Cause(ctx) == ErrTimeout {
		log.Warn("compiler timed out", "run_id", runID, "timeout", timeout)
		return nil, &TimeoutError{Timeout: timeout}
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			return nil, &SpawnError{Err: fmt.Errorf("running %s: %w", compiler, context.Cause(ctx))}
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(runErr, os.ErrNotExist) && !exists(compiler):
			return nil, &NotFoundError{Path: compiler}
		default:
			// Includes ENOENT for an existing file whose interpreter is missing.
			return nil, &SpawnError{Err: fmt.Errorf("running %s: %w", compiler, runErr)}
		}
	}

	res := &Result{
		RunID:     runID,
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: outW.dropped || errW.dropped,
		Duration:  elapsed,
	}
	log.Debug("compiler finished", "run_id", runID, "exit_code", exitCode,
		"stdout_bytes", len(res.Stdout), "stderr_bytes", len(res.Stderr), "elapsed", elapsed)
	return res, nil
}

// stage writes source to a fresh temporary file and returns its path and
// a function that removes it.
func (r *Runner) stage(source string) (string, func(), error) {
	f, err := os.CreateTemp(r.TempDir, "ccinspect-input-*.txt")
	if err != nil {
		return "", nil, fmt.Errorf("creating staging file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := io.WriteString(f, source); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing staging file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func (r *Runner) compiler() string {
	if r.Compiler != "" {
		return r.Compiler
	}
	return DefaultCompiler
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) maxOutput() int {
	if r.MaxOutput > 0 {
		return r.MaxOutput
	}
	return DefaultMaxOutput
}

func (r *Runner) waitDelay() time.Duration {
	if r.WaitDelay > 0 {
		return r.WaitDelay
	}
	return DefaultWaitDelay
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

// limitWriter writes up to limit bytes to buf, then silently discards the
// rest. dropped is set once anything has been discarded.
type limitWriter struct {
	buf     *bytes.Buffer
	limit   int
	dropped bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.dropped = true
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.dropped = true
		return len(p), nil
	}
	return w.buf.Write(p)
}
