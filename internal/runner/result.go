package runner

import "time"

// Result holds the output of one compiler invocation.
type Result struct {
	RunID     string        // unique identifier for this run
	ExitCode  int           // process exit code, informational only
	Stdout    []byte        // captured stdout (may be truncated)
	Stderr    []byte        // captured stderr (may be truncated)
	Truncated bool          // true if either stream exceeded the size cap
	Duration  time.Duration // wall time from start to exit
}
