// Package approval gates high-cost operations behind an external
// approver. The gate is consulted synchronously before dispatching any
// task whose estimated cost crosses the configured threshold.
package approval

import (
	"context"
	"errors"
	"time"
)

// ErrApprovalDenied indicates the approver rejected the operation. Only
// the gated task is blocked; sibling tasks continue.
var ErrApprovalDenied = errors.New("approval denied")

// Gate is the external approval collaborator.
type Gate interface {
	// RequestApproval asks whether the described operation may proceed.
	RequestApproval(ctx context.Context, description string, estimatedCost float64) (bool, error)
}

// Func adapts a function to the Gate interface.
type Func func(ctx context.Context, description string, estimatedCost float64) (bool, error)

// RequestApproval implements Gate.
func (f Func) RequestApproval(ctx context.Context, description string, estimatedCost float64) (bool, error) {
	return f(ctx, description, estimatedCost)
}

// Auto returns a gate that approves everything. Used when a run is
// submitted with the auto-approval flag.
func Auto() Gate {
	return Func(func(ctx context.Context, description string, estimatedCost float64) (bool, error) {
		return true, nil
	})
}

// Deny returns a gate that denies everything. The fail-closed default
// when no approver is wired.
func Deny() Gate {
	return Func(func(ctx context.Context, description string, estimatedCost float64) (bool, error) {
		return false, nil
	})
}

// TimeoutGate wraps another gate and treats a slow or failed answer as
// a denial. Fail-closed: a timeout never lets an expensive task slip
// through.
type TimeoutGate struct {
	gate    Gate
	timeout time.Duration
}

// NewTimeoutGate wraps gate with the given answer deadline.
func NewTimeoutGate(gate Gate, timeout time.Duration) *TimeoutGate {
	return &TimeoutGate{gate: gate, timeout: timeout}
}

// RequestApproval implements Gate.
func (g *TimeoutGate) RequestApproval(ctx context.Context, description string, estimatedCost float64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type answer struct {
		approved bool
		err      error
	}
	ch := make(chan answer, 1)
	go func() {
		approved, err := g.gate.RequestApproval(ctx, description, estimatedCost)
		ch <- answer{approved, err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return false, a.err
		}
		return a.approved, nil
	case <-ctx.Done():
		return false, nil
	}
}
