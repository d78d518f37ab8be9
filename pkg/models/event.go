package models

import "time"

// EventType identifies a run lifecycle event.
type EventType string

const (
	// EventRunStarted is emitted when the first wave is dispatched.
	EventRunStarted EventType = "started"
	// EventWaveCompleted is emitted when every task in a wave reaches a
	// terminal state.
	EventWaveCompleted EventType = "wave_completed"
	// EventRunCompleted is emitted when the run completes, possibly with
	// embedded task failures.
	EventRunCompleted EventType = "completed"
	// EventRunFailed is emitted when the run as a whole fails.
	EventRunFailed EventType = "failed"
	// EventBudgetExceeded is emitted when the ledger halts the run.
	EventBudgetExceeded EventType = "budget_exceeded"
	// EventRunCancelled is emitted when the run is cancelled at a wave
	// boundary.
	EventRunCancelled EventType = "cancelled"
)

// Event is a run lifecycle notification delivered to registered
// listeners. Delivery is fire-and-forget and never blocks the run.
type Event struct {
	// Type is the lifecycle event type.
	Type EventType `json:"type"`
	// RunID is the run this event belongs to.
	RunID string `json:"run_id"`
	// Wave is the wave index for wave-scoped events, 0 otherwise.
	Wave int `json:"wave,omitempty"`
	// Message is a short human-readable description.
	Message string `json:"message,omitempty"`
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}
