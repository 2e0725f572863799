package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// writeCompiler writes a shell script standing in for the compiler.
func writeCompiler(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compiler")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRunner(t *testing.T, body string) *Runner {
	t.Helper()
	return &Runner{
		Compiler:  writeCompiler(t, body),
		Timeout:   10 * time.Second,
		MaxOutput: 1 << 20,
		TempDir:   t.TempDir(),
	}
}

func TestRun_Success(t *testing.T) {
	r := newTestRunner(t, `cat "$1"`)
	res, err := r.Run(context.Background(), "x = 1;\nprint x;\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "x = 1;\nprint x;\n" {
		t.Errorf("Stdout = %q, want the staged source", res.Stdout)
	}
	if len(res.Stderr) != 0 {
		t.Errorf("Stderr = %q, want empty", res.Stderr)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRun_EmptySourceForwarded(t *testing.T) {
	r := newTestRunner(t, `wc -c < "$1" | tr -d ' '`)
	res, err := r.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(res.Stdout)) != "0" {
		t.Errorf("Stdout = %q, want 0 bytes staged", res.Stdout)
	}
}

func TestRun_StderrAndExitCodeCaptured(t *testing.T) {
	r := newTestRunner(t, `echo "--- Symbol Table ---"; echo "syntax error" >&2; exit 3`)
	res, err := r.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(string(res.Stderr), "syntax error") {
		t.Errorf("Stderr = %q, want to contain 'syntax error'", res.Stderr)
	}
	if !strings.Contains(string(res.Stdout), "Symbol Table") {
		t.Errorf("Stdout = %q, want to contain header", res.Stdout)
	}
}

func TestRun_ExecutableNotFound(t *testing.T) {
	staging := t.TempDir()
	r := &Runner{
		Compiler: filepath.Join(t.TempDir(), "missing-compiler"),
		TempDir:  staging,
	}
	_, err := r.Run(context.Background(), "x")
	if !errors.Is(err, ErrExecutableNotFound) {
		t.Fatalf("err = %v, want ErrExecutableNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Path != r.Compiler {
		t.Errorf("err = %#v, want *NotFoundError for %s", err, r.Compiler)
	}
	if Kind(err) != FailureNotFound {
		t.Errorf("Kind = %q, want %q", Kind(err), FailureNotFound)
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir has %d entries, want none", len(entries))
	}
}

func TestRun_Timeout(t *testing.T) {
	r := newTestRunner(t, `echo "--- Abstract Syntax Tree (AST) ---"; exec sleep 30`)
	r.Timeout = 200 * time.Millisecond
	r.WaitDelay = 500 * time.Millisecond

	start := time.Now()
	res, err := r.Run(context.Background(), "while (1) {}")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if res != nil {
		t.Errorf("Result = %+v, want nil on timeout", res)
	}
	if Kind(err) != FailureTimeout {
		t.Errorf("Kind = %q, want %q", Kind(err), FailureTimeout)
	}
	if elapsed > r.Timeout+r.WaitDelay+2*time.Second {
		t.Errorf("Run took %s, want close to %s", elapsed, r.Timeout)
	}
}

func TestRun_SpawnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compiler")
	if err := os.WriteFile(path, []byte("not a program"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := &Runner{Compiler: path, TempDir: t.TempDir()}

	_, err := r.Run(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error for non-executable compiler")
	}
	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T %v, want *SpawnError", err, err)
	}
	if Kind(err) != FailureSpawn {
		t.Errorf("Kind = %q, want %q", Kind(err), FailureSpawn)
	}
}

func TestRun_MissingInterpreterIsSpawnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compiler")
	if err := os.WriteFile(path, []byte("#!/no/such/interp\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := &Runner{Compiler: path, TempDir: t.TempDir()}

	_, err := r.Run(context.Background(), "x")
	if errors.Is(err, ErrExecutableNotFound) {
		t.Fatalf("err = %v, want a spawn failure for an existing compiler", err)
	}
	if Kind(err) != FailureSpawn {
		t.Errorf("Kind = %q, want %q (err=%v)", Kind(err), FailureSpawn, err)
	}
}

func TestRun_ParentDeadlineIsNotTimeout(t *testing.T) {
	r := newTestRunner(t, `exec sleep 30`)
	r.WaitDelay = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "")
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want the caller's deadline rather than a timeout", err)
	}
	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T %v, want *SpawnError", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want to wrap context.DeadlineExceeded", err)
	}
}

func TestRun_StagingFileRemoved(t *testing.T) {
	r := newTestRunner(t, `echo "$1"`)
	res, err := r.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	staged := strings.TrimSpace(string(res.Stdout))
	if filepath.Dir(staged) != r.TempDir {
		t.Errorf("staged at %s, want inside %s", staged, r.TempDir)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("staging file %s still exists (err=%v)", staged, err)
	}
}

func TestRun_OutputTruncation(t *testing.T) {
	r := newTestRunner(t, `dd if=/dev/zero bs=200 count=1 2>/dev/null`)
	r.MaxOutput = 100

	res, err := r.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Stdout) > r.MaxOutput {
		t.Errorf("len(Stdout) = %d, want <= %d", len(res.Stdout), r.MaxOutput)
	}
}

func TestRun_OutputAtCapNotTruncated(t *testing.T) {
	r := newTestRunner(t, `printf abcd`)
	r.MaxOutput = 4

	res, err := r.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Truncated {
		t.Error("Truncated = true, want false for output exactly at the cap")
	}
	if string(res.Stdout) != "abcd" {
		t.Errorf("Stdout = %q, want abcd", res.Stdout)
	}

	r = newTestRunner(t, `printf abcde`)
	r.MaxOutput = 4
	res, err = r.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true for output one byte over the cap")
	}
}

func TestRun_ConcurrentCallsDoNotShareInput(t *testing.T) {
	r := newTestRunner(t, `sleep 0.1; cat "$1"`)

	sources := []string{"a", "b", "c", "d"}
	got := make([]string, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Run(context.Background(), src)
			if err != nil {
				t.Errorf("Run(%q): %v", src, err)
				return
			}
			got[i] = string(res.Stdout)
		}()
	}
	wg.Wait()

	for i, src := range sources {
		if got[i] != src {
			t.Errorf("run %d stdout = %q, want %q", i, got[i], src)
		}
	}
}

func TestStart_DeliversOneOutcome(t *testing.T) {
	r := newTestRunner(t, `cat "$1"`)
	ch := r.Start(context.Background(), "hello")

	select {
	case out, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without outcome")
		}
		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
		if string(out.Result.Stdout) != "hello" {
			t.Errorf("Stdout = %q, want hello", out.Result.Stdout)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome within 5s")
	}

	if _, ok := <-ch; ok {
		t.Error("received a second outcome, want channel closed")
	}
}

func TestStart_CancelKillsProcess(t *testing.T) {
	r := newTestRunner(t, `exec sleep 30`)
	r.WaitDelay = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	ch := r.Start(ctx, "")
	cancel()

	select {
	case out := <-ch:
		if out.Err == nil {
			t.Fatal("expected error after cancel")
		}
		if errors.Is(out.Err, ErrTimeout) {
			t.Errorf("err = %v, want a cancellation rather than a timeout", out.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("process not killed within 5s of cancel")
	}
}

func TestKind(t *testing.T) {
	if Kind(nil) != FailureNone {
		t.Errorf("Kind(nil) = %q", Kind(nil))
	}
	if Kind(errors.New("boom")) != FailureSpawn {
		t.Errorf("Kind(unknown) = %q, want spawn", Kind(errors.New("boom")))
	}
	wrapped := &TimeoutError{Timeout: time.Second}
	if !strings.Contains(wrapped.Error(), "1s") {
		t.Errorf("TimeoutError = %q, want to mention 1s", wrapped.Error())
	}
}
