// Package worker defines the worker contract, the capability registry
// used for routing, and the command-backed worker implementation.
package worker

import "context"

// Result is what a worker returns for one task attempt.
type Result struct {
	// Output is the produced payload. Recoverable failures surface here
	// as low-quality output for the evaluator to score, not as an error.
	Output string
	// Cost is the actual cost of the attempt in EUR. Workers report cost
	// even on partial failure.
	Cost float64
	// Metadata carries worker-specific details (duration, exit status).
	Metadata map[string]string
}

// Worker executes one task. Implementations must not return an error
// for recoverable failures; an error means the worker itself could not
// run at all.
type Worker interface {
	Execute(ctx context.Context, input string) (*Result, error)
}

// Func adapts a function to the Worker interface. Tests and embedded
// workers use it.
type Func func(ctx context.Context, input string) (*Result, error)

// Execute implements Worker.
func (f Func) Execute(ctx context.Context, input string) (*Result, error) {
	return f(ctx, input)
}
