package runner

import "context"

// Outcome is the completion value delivered by Start.
type Outcome struct {
	Result *Result
	Err    error
}

// Start runs the compiler on its own goroutine and returns a channel that
// receives exactly one Outcome. Cancelling ctx kills the process.
func (r *Runner) Start(ctx context.Context, source string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := r.Run(ctx, source)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}
