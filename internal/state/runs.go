package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"workforce/pkg/models"
)

// Run persistence. Saves are upserts keyed on ID, so the orchestrator
// can write the same run repeatedly as it progresses.

// SaveRun inserts or updates a run. Tasks are saved separately.
func (db *DB) SaveRun(r *models.Run) error {
	budgetExceeded := 0
	if r.BudgetExceeded {
		budgetExceeded = 1
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, goal, status, priority, budget_limit, cost, verdict, budget_exceeded, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal = excluded.goal,
			status = excluded.status,
			priority = excluded.priority,
			budget_limit = excluded.budget_limit,
			cost = excluded.cost,
			verdict = excluded.verdict,
			budget_exceeded = excluded.budget_exceeded,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, r.ID, r.Goal, string(r.Status), r.Priority, r.BudgetLimit, r.Cost, string(r.Verdict), budgetExceeded, r.Error,
		formatTime(r.CreatedAt), formatNullableTime(r.StartedAt), formatNullableTime(r.CompletedAt))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID without its tasks. Returns nil when the
// run does not exist.
func (db *DB) GetRun(id string) (*models.Run, error) {
	row := db.QueryRow(`
		SELECT id, goal, status, priority, budget_limit, cost, verdict, budget_exceeded, error, created_at, started_at, completed_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns lists runs newest first. A limit of zero or less returns all.
func (db *DB) ListRuns(limit int) ([]*models.Run, error) {
	query := `
		SELECT id, goal, status, priority, budget_limit, cost, verdict, budget_exceeded, error, created_at, started_at, completed_at
		FROM runs ORDER BY created_at DESC, id DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and, via the foreign key, its tasks.
func (db *DB) DeleteRun(id string) error {
	_, err := db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// SaveTask inserts or updates one task.
func (db *DB) SaveTask(t *models.Task) error {
	dependsOn, _ := json.Marshal(t.DependsOn)

	_, err := db.Exec(`
		INSERT INTO tasks (id, run_id, worker, wave, depends_on, priority, input, output, status, verdict, score, estimated_cost, cost, retry_count, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker = excluded.worker,
			wave = excluded.wave,
			depends_on = excluded.depends_on,
			priority = excluded.priority,
			input = excluded.input,
			output = excluded.output,
			status = excluded.status,
			verdict = excluded.verdict,
			score = excluded.score,
			estimated_cost = excluded.estimated_cost,
			cost = excluded.cost,
			retry_count = excluded.retry_count,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, t.ID, t.RunID, t.Worker, t.Wave, string(dependsOn), t.Priority, t.Input, t.Output, string(t.Status), string(t.Verdict),
		t.Score, t.EstimatedCost, t.Cost, t.RetryCount, t.Error,
		formatTime(t.CreatedAt), formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// SaveTasks saves all tasks of a run.
func (db *DB) SaveTasks(tasks []*models.Task) error {
	for _, t := range tasks {
		if err := db.SaveTask(t); err != nil {
			return err
		}
	}
	return nil
}

// GetRunTasks lists a run's tasks ordered by task ID.
func (db *DB) GetRunTasks(runID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT id, run_id, worker, wave, depends_on, priority, input, output, status, verdict, score, estimated_cost, cost, retry_count, error, created_at, started_at, completed_at
		FROM tasks WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		var dependsOn, verdict, errMsg, input, output sql.NullString
		var createdAt string
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.RunID, &t.Worker, &t.Wave, &dependsOn, &t.Priority, &input, &output, &t.Status, &verdict,
			&t.Score, &t.EstimatedCost, &t.Cost, &t.RetryCount, &errMsg, &createdAt, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if dependsOn.Valid {
			json.Unmarshal([]byte(dependsOn.String), &t.DependsOn)
		}
		if input.Valid {
			t.Input = input.String
		}
		if output.Valid {
			t.Output = output.String
		}
		if verdict.Valid {
			t.Verdict = models.Verdict(verdict.String)
		}
		if errMsg.Valid {
			t.Error = errMsg.String
		}
		t.CreatedAt, _ = parseTime(createdAt)
		t.StartedAt = parseNullableTime(startedAt)
		t.CompletedAt = parseNullableTime(completedAt)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// GetRunWithTasks retrieves a run and its tasks.
func (db *DB) GetRunWithTasks(id string) (*models.Run, error) {
	r, err := db.GetRun(id)
	if err != nil || r == nil {
		return r, err
	}
	r.Tasks, err = db.GetRunTasks(id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// scanRun scans one runs row via the given scan function.
func scanRun(scan func(dest ...any) error) (*models.Run, error) {
	var r models.Run
	var verdict, errMsg sql.NullString
	var budgetExceeded int
	var createdAt string
	var startedAt, completedAt sql.NullString
	err := scan(&r.ID, &r.Goal, &r.Status, &r.Priority, &r.BudgetLimit, &r.Cost, &verdict, &budgetExceeded, &errMsg,
		&createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if verdict.Valid {
		r.Verdict = models.Verdict(verdict.String)
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	r.BudgetExceeded = budgetExceeded != 0
	r.CreatedAt, _ = parseTime(createdAt)
	r.StartedAt = parseNullableTime(startedAt)
	r.CompletedAt = parseNullableTime(completedAt)
	return &r, nil
}
