package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/deixis/ccinspect/internal/runner"
	"github.com/deixis/ccinspect/internal/sections"
)

func newRun(t *testing.T) *RunResult {
	t.Helper()
	return &RunResult{
		ID:       uuid.New().String(),
		Compiler: "./compiler",
		Sections: sections.Map{sections.AST: "Num: 1\n", sections.Symbol: ""},
	}
}

func TestOutcome_Precedence(t *testing.T) {
	r := &RunResult{Sections: sections.Map{sections.AST: "x\n"}}
	if r.Outcome() != OK {
		t.Errorf("Outcome() = %s, want ok", r.Outcome())
	}

	r.Stderr = "line 1: syntax error\n"
	if r.Outcome() != Diagnostic {
		t.Errorf("Outcome() = %s, want diagnostic", r.Outcome())
	}
	if r.Message() != r.Stderr {
		t.Errorf("Message() = %q, want stderr", r.Message())
	}

	r.Failure = runner.FailureTimeout
	r.Error = "compiler timed out after 10s"
	if r.Outcome() != Failure {
		t.Errorf("Outcome() = %s, want failure", r.Outcome())
	}
	if r.Message() != r.Error {
		t.Errorf("Message() = %q, want %q", r.Message(), r.Error)
	}
}

func TestOutcome_WhitespaceStderrIsNotDiagnostic(t *testing.T) {
	r := &RunResult{Stderr: " \n\t\n"}
	if r.Outcome() != OK {
		t.Errorf("Outcome() = %s, want ok", r.Outcome())
	}
	if err := r.Expect(OK); err != nil {
		t.Errorf("Expect(ok): %v", err)
	}
	if err := r.Expect(Failure); err == nil {
		t.Error("Expect(failure): expected error")
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	s := NewDiskStoreAt(filepath.Join(t.TempDir(), "runs"))
	run := newRun(t)
	if err := s.Save(run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(run.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	// Present-but-empty survives the round trip.
	if _, ok := got.Sections.Lookup(sections.Symbol); !ok {
		t.Error("symbol section lost on round trip")
	}
}

func TestDiskStore_LazyTempDir(t *testing.T) {
	s := NewDiskStore()
	run := newRun(t)
	if err := s.Save(run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(s.dir) })
	if _, err := s.Load(run.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestDiskStore_RejectsNonUUID(t *testing.T) {
	s := NewDiskStoreAt(t.TempDir())
	if _, err := s.Load("../../etc/passwd"); err == nil {
		t.Error("expected error for path-like run id")
	}
}

func TestDiskStore_LoadMissing(t *testing.T) {
	s := NewDiskStoreAt(t.TempDir())
	if _, err := s.Load(uuid.New().String()); err == nil {
		t.Error("expected error for unknown run id")
	}
}

// countingStore records backing-store traffic.
type countingStore struct {
	runs  map[string]*RunResult
	loads int
}

func (c *countingStore) Save(r *RunResult) error {
	if c.runs == nil {
		c.runs = make(map[string]*RunResult)
	}
	c.runs[r.ID] = r
	return nil
}

func (c *countingStore) Load(id string) (*RunResult, error) {
	c.loads++
	if r, ok := c.runs[id]; ok {
		return r, nil
	}
	return nil, errors.New("not found")
}

func TestLRUStore_HitAvoidsBackingStore(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)
	run := newRun(t)
	if err := s.Save(run); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(run.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0", back.loads)
	}
}

func TestLRUStore_EvictsLeastRecentlyUsed(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)
	a, b, c := newRun(t), newRun(t), newRun(t)
	for _, r := range []*RunResult{a, b} {
		if err := s.Save(r); err != nil {
			t.Fatal(err)
		}
	}
	// Touch a so that b becomes least recently used.
	if _, err := s.Load(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(c); err != nil {
		t.Fatal(err)
	}

	recent := s.Recent()
	var ids []string
	for _, r := range recent {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{c.ID, a.ID}, ids); diff != "" {
		t.Errorf("Recent() mismatch (-want +got):\n%s", diff)
	}

	// b is evicted from memory but still loadable from the backing store.
	if _, err := s.Load(b.ID); err != nil {
		t.Fatalf("Load(b): %v", err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}
}
