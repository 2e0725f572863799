package runner

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Response is a pre-configured response for a source text.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Fake records the sources it is asked to compile and returns
// pre-configured responses instead of spawning a process.
// Exported for use by inspect and mcp tests.
type Fake struct {
	mu        sync.Mutex
	Calls     []string
	responses map[string]Response // key: source text
	fallback  Response
}

// NewFake creates a Fake whose fallback response is empty output.
func NewFake() *Fake {
	return &Fake{
		responses: make(map[string]Response),
	}
}

// SetResponse configures a response for a specific source text.
func (f *Fake) SetResponse(source string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[source] = resp
}

// SetFallback sets the default response for unmatched sources.
func (f *Fake) SetFallback(resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = resp
}

// Run records the call and returns the matching response.
func (f *Fake) Run(_ context.Context, source string) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, source)

	resp, ok := f.responses[source]
	if !ok {
		resp = f.fallback
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Result{
		RunID:    uuid.New().String(),
		ExitCode: resp.ExitCode,
		Stdout:   []byte(resp.Stdout),
		Stderr:   []byte(resp.Stderr),
	}, nil
}

// CallCount returns the number of recorded calls.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
