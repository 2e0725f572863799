// Package report persists compiler runs so that their sections can be
// retrieved later without invoking the compiler again.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/ccinspect/internal/runner"
	"github.com/deixis/ccinspect/internal/sections"
)

// Outcome summarises how a run should be displayed.
type Outcome string

const (
	// OK means the run completed without stderr; Sections are valid.
	OK Outcome = "ok"
	// Diagnostic means the compiler wrote to stderr; Stderr replaces every section.
	Diagnostic Outcome = "diagnostic"
	// Failure means the compiler could not be run to completion.
	Failure Outcome = "failure"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult is the stored record of one compiler invocation.
type RunResult struct {
	ID           string    `json:"id"`
	Compiler     string    `json:"compiler"`
	SourceSHA256 string    `json:"source_sha256"`
	CreatedAt    time.Time `json:"created_at"`

	// Process fields. Only set when the process ran to completion.
	ExitCode   int   `json:"exit_code"`
	Truncated  bool  `json:"truncated,omitempty"`
	DurationMS int64 `json:"duration_ms,omitempty"`

	// Failure is set when the process could not be run to completion;
	// Error then holds the message to display.
	Failure runner.FailureKind `json:"failure,omitempty"`
	Error   string             `json:"error,omitempty"`

	// Stderr is the raw compiler diagnostic output.
	Stderr string `json:"stderr,omitempty"`

	// Sections is nil unless Outcome is OK.
	Sections sections.Map `json:"sections,omitempty"`
	Preamble []string     `json:"preamble,omitempty"`
}

// Outcome derives the display outcome. A failure outranks stderr, which
// outranks any section data.
func (r *RunResult) Outcome() Outcome {
	switch {
	case r.Failure != runner.FailureNone:
		return Failure
	case HasDiagnostic(r.Stderr):
		return Diagnostic
	default:
		return OK
	}
}

// Message returns the error text to display instead of sections, or ""
// when the run is OK.
func (r *RunResult) Message() string {
	switch r.Outcome() {
	case Failure:
		return r.Error
	case Diagnostic:
		return r.Stderr
	}
	return ""
}

// Expect returns an error if the run's outcome does not match want.
func (r *RunResult) Expect(want Outcome) error {
	if got := r.Outcome(); got != want {
		return fmt.Errorf("run %s has outcome %s, not %s", r.ID, got, want)
	}
	return nil
}

// HasDiagnostic reports whether stderr carries anything besides whitespace.
func HasDiagnostic(stderr string) bool {
	return strings.TrimSpace(stderr) != ""
}
