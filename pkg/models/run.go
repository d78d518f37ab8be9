package models

import (
	"sort"
	"time"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	// RunStatusPending indicates the run has been accepted but not started.
	RunStatusPending RunStatus = "pending"
	// RunStatusInProgress indicates the run is executing waves.
	RunStatusInProgress RunStatus = "in_progress"
	// RunStatusCompleted indicates the run finished, possibly with embedded
	// task failures or a budget halt.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the run as a whole failed.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled indicates the run was cancelled at a wave boundary.
	RunStatusCancelled RunStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusInProgress, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Run represents one end-to-end execution of a submitted goal.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// Goal is the original goal text as submitted.
	Goal string `json:"goal"`
	// Status is the current state of the run.
	Status RunStatus `json:"status"`
	// Priority is the run priority (1 is highest, 5 is background).
	Priority int `json:"priority"`
	// BudgetLimit is the maximum spend for this run in EUR.
	BudgetLimit float64 `json:"budget_limit"`
	// Cost is the total committed cost in EUR.
	Cost float64 `json:"cost"`
	// Verdict is the run-level verdict, the worst of its task verdicts.
	Verdict Verdict `json:"verdict,omitempty"`
	// BudgetExceeded indicates the run was halted by the budget ledger.
	BudgetExceeded bool `json:"budget_exceeded,omitempty"`
	// Error holds the terminal error for failed runs.
	Error string `json:"error,omitempty"`
	// Tasks holds the task results, ordered deterministically by task ID.
	Tasks []*Task `json:"tasks,omitempty"`
	// CreatedAt is when the goal was submitted.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the first wave was dispatched.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the run reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SortTasks orders the run's tasks deterministically by task ID,
// regardless of completion order.
func (r *Run) SortTasks() {
	sort.Slice(r.Tasks, func(i, j int) bool {
		return r.Tasks[i].ID < r.Tasks[j].ID
	})
}

// Progress returns the fraction of tasks in a terminal state, 0..1.
func (r *Run) Progress() float64 {
	if len(r.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range r.Tasks {
		if t.Status.Terminal() {
			done++
		}
	}
	return float64(done) / float64(len(r.Tasks))
}

// VerdictBreakdown returns a count of terminal tasks by verdict.
func (r *Run) VerdictBreakdown() map[Verdict]int {
	breakdown := map[Verdict]int{
		VerdictGreen:  0,
		VerdictYellow: 0,
		VerdictRed:    0,
	}
	for _, t := range r.Tasks {
		if t.Verdict.Valid() {
			breakdown[t.Verdict]++
		}
	}
	return breakdown
}
