package approval

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeoutGateDeniesOnTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, desc string, cost float64) (bool, error) {
		select {
		case <-time.After(5 * time.Second):
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	})

	gate := NewTimeoutGate(slow, 20*time.Millisecond)
	approved, err := gate.RequestApproval(context.Background(), "expensive task", 80)
	if err != nil {
		t.Fatalf("timeout must map to denial, not error: %v", err)
	}
	if approved {
		t.Error("timed-out approval must be treated as denial")
	}
}

func TestTimeoutGatePassesThroughAnswer(t *testing.T) {
	gate := NewTimeoutGate(Auto(), time.Second)
	approved, err := gate.RequestApproval(context.Background(), "task", 80)
	if err != nil || !approved {
		t.Errorf("got (%v, %v), want approval", approved, err)
	}

	gate = NewTimeoutGate(Deny(), time.Second)
	approved, err = gate.RequestApproval(context.Background(), "task", 80)
	if err != nil || approved {
		t.Errorf("got (%v, %v), want denial", approved, err)
	}
}

func TestTimeoutGatePropagatesError(t *testing.T) {
	boom := errors.New("approver offline")
	gate := NewTimeoutGate(Func(func(ctx context.Context, desc string, cost float64) (bool, error) {
		return false, boom
	}), time.Second)

	approved, err := gate.RequestApproval(context.Background(), "task", 80)
	if approved {
		t.Error("errored approval must not approve")
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
