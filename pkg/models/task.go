package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is waiting for its wave to start.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusRunning indicates the task has been dispatched to a worker.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusSucceeded indicates the task completed with an acceptable verdict.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed indicates the task exhausted its retries without an
	// acceptable verdict.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was never dispatched, either because
	// a dependency failed, approval was denied, or the budget ran out.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Task represents one unit of delegated work within a run.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// RunID is the ID of the run that owns this task.
	RunID string `json:"run_id"`
	// Worker is the worker type this task is routed to.
	Worker string `json:"worker"`
	// Wave is the execution wave index, starting at 1.
	Wave int `json:"wave"`
	// DependsOn lists task IDs that must succeed before this task runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// Priority is the task priority (1 is highest, 5 is background).
	Priority int `json:"priority"`
	// Input is the payload handed to the worker, including any context
	// pre-seeded from past executions or retry feedback.
	Input string `json:"input"`
	// Output is the worker's output payload.
	Output string `json:"output,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Verdict is the quality verdict for the final attempt.
	Verdict Verdict `json:"verdict,omitempty"`
	// Score is the weighted criteria score of the final attempt, 0..1.
	Score float64 `json:"score"`
	// EstimatedCost is the pre-dispatch cost estimate in EUR.
	EstimatedCost float64 `json:"estimated_cost"`
	// Cost is the actual cost in EUR, accumulated across attempts.
	Cost float64 `json:"cost"`
	// RetryCount is the number of retries performed (0 for a single attempt).
	RetryCount int `json:"retry_count"`
	// Error holds the reason the task failed or was skipped.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was created during decomposition.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the task was first dispatched, if ever.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
