// Package scheduler executes a task graph wave by wave. Within a wave
// tasks dispatch FIFO under a concurrency bound; a wave starts only
// after every task in the previous wave reached a terminal state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"workforce/internal/approval"
	"workforce/internal/budget"
	"workforce/internal/evaluate"
	"workforce/internal/graph"
	"workforce/internal/notify"
	"workforce/internal/worker"
	"workforce/pkg/models"
)

// ErrRetryExhausted indicates a task stayed RED after its defensive
// retry and was marked failed.
var ErrRetryExhausted = errors.New("retries exhausted")

const (
	// DefaultMaxParallel is the default concurrency bound within a wave.
	DefaultMaxParallel = 4
	// DefaultRetryLimit is the default number of retries for a YELLOW task.
	DefaultRetryLimit = 2
)

// Config tunes scheduling behavior.
type Config struct {
	// MaxParallel bounds concurrent tasks within a wave.
	MaxParallel int
	// RetryLimit is the maximum retries for a task scored YELLOW.
	RetryLimit int
	// ApprovalThreshold is the estimated cost in EUR at or above which a
	// task needs approval before dispatch. Zero or less disables gating.
	ApprovalThreshold float64
}

func (c Config) withDefaults() Config {
	if c.MaxParallel <= 0 {
		c.MaxParallel = DefaultMaxParallel
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = DefaultRetryLimit
	}
	return c
}

// Result is the outcome of executing a task graph.
type Result struct {
	// Tasks holds every task in the graph, ordered by ID, all terminal.
	Tasks []*models.Task
	// Verdict is the worst verdict across evaluated tasks.
	Verdict models.Verdict
	// TotalCost is the cost committed to the ledger for this run.
	TotalCost float64
	// BudgetExceeded indicates the ledger halted dispatch partway.
	BudgetExceeded bool
	// Cancelled indicates the run stopped at a wave boundary on
	// context cancellation.
	Cancelled bool
}

// Scheduler drives task execution for one or more runs.
type Scheduler struct {
	registry *worker.Registry
	eval     *evaluate.Evaluator
	gate     approval.Gate
	notifier *notify.Notifier
	cfg      Config
	logger   *zap.Logger

	// onTaskDone, when set, is invoked after each task reaches a
	// terminal state. The orchestrator uses it to persist progress.
	onTaskDone func(*models.Task)
}

// New creates a scheduler. The gate may be nil, which disables approval
// gating entirely.
func New(registry *worker.Registry, eval *evaluate.Evaluator, gate approval.Gate, notifier *notify.Notifier, cfg Config, logger *zap.Logger) *Scheduler {
	if eval == nil {
		eval = evaluate.New()
	}
	if notifier == nil {
		notifier = notify.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		registry: registry,
		eval:     eval,
		gate:     gate,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// OnTaskDone registers a hook called after each task reaches a terminal
// state. Must be set before Run.
func (s *Scheduler) OnTaskDone(fn func(*models.Task)) {
	s.onTaskDone = fn
}

// Run executes the graph to completion and returns the terminal state
// of every task. Budget exhaustion and cancellation are reported on the
// result, not as errors; the error return covers structural problems
// only.
func (s *Scheduler) Run(ctx context.Context, g *graph.TaskGraph, ledger *budget.Ledger, runID string) (*Result, error) {
	if g == nil || g.Size() == 0 {
		return nil, fmt.Errorf("run %s: empty task graph", runID)
	}
	if ledger == nil {
		return nil, fmt.Errorf("run %s: nil budget ledger", runID)
	}

	res := &Result{}
	for _, tasks := range g.Waves() {
		waveIndex := tasks[0].Wave

		// Cancellation takes effect at wave boundaries only. Tasks
		// already in flight were allowed to finish by the wave barrier.
		if ctx.Err() != nil {
			res.Cancelled = true
		}
		if res.Cancelled || res.BudgetExceeded {
			s.skipRemaining(tasks, res)
			continue
		}

		s.runWave(ctx, g, ledger, runID, waveIndex, tasks, res)

		// A failed or skipped task poisons everything downstream of it.
		for _, task := range tasks {
			if task.Status != models.TaskStatusFailed && task.Status != models.TaskStatusSkipped {
				continue
			}
			for _, depID := range g.TransitiveDependents(task.ID) {
				dep := g.GetTask(depID)
				if dep == nil || dep.Status.Terminal() {
					continue
				}
				s.finish(dep, models.TaskStatusSkipped, fmt.Sprintf("dependency %s did not succeed", task.ID))
			}
		}

		s.notifier.Emit(models.Event{
			Type:    models.EventWaveCompleted,
			RunID:   runID,
			Wave:    waveIndex,
			Message: fmt.Sprintf("wave %d completed, %d tasks", waveIndex, len(tasks)),
		})
		if res.BudgetExceeded {
			s.notifier.Emit(models.Event{
				Type:    models.EventBudgetExceeded,
				RunID:   runID,
				Message: fmt.Sprintf("run budget %.2f EUR exhausted during wave %d", ledger.Limit(), waveIndex),
			})
		}
	}

	res.Tasks = g.Tasks()
	res.TotalCost = ledger.Spent()
	for _, task := range res.Tasks {
		if task.Verdict != "" {
			res.Verdict = res.Verdict.Worst(task.Verdict)
		}
		if task.Status == models.TaskStatusFailed {
			res.Verdict = res.Verdict.Worst(models.VerdictRed)
		}
	}
	return res, nil
}

// runWave dispatches one wave under the concurrency bound. Dispatch is
// FIFO in wave order; the function returns once every task in the wave
// is terminal.
func (s *Scheduler) runWave(ctx context.Context, g *graph.TaskGraph, ledger *budget.Ledger, runID string, waveIndex int, tasks []*models.Task, res *Result) {
	sem := semaphore.NewWeighted(int64(s.cfg.MaxParallel))
	var wg sync.WaitGroup
	var mu sync.Mutex

	halt := func() {
		mu.Lock()
		res.BudgetExceeded = true
		mu.Unlock()
	}
	halted := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return res.BudgetExceeded
	}

	for _, task := range tasks {
		if task.Status.Terminal() {
			continue
		}
		if halted() {
			s.finish(task, models.TaskStatusSkipped, "budget exhausted before dispatch")
			continue
		}
		if !g.DepsSatisfied(task.ID) {
			s.finish(task, models.TaskStatusSkipped, "dependency did not succeed")
			continue
		}
		if !ledger.Reserve(task.EstimatedCost) {
			s.logger.Warn("task does not fit remaining budget",
				zap.String("run_id", runID),
				zap.String("task_id", task.ID),
				zap.Float64("estimated_cost", task.EstimatedCost),
				zap.Float64("remaining", ledger.Remaining()))
			s.finish(task, models.TaskStatusSkipped, "estimated cost exceeds remaining budget")
			halt()
			continue
		}
		if s.gated(task) {
			approved, err := s.gate.RequestApproval(ctx,
				fmt.Sprintf("task %s (%s), estimated %.2f EUR", task.ID, task.Worker, task.EstimatedCost),
				task.EstimatedCost)
			if err != nil || !approved {
				if err != nil {
					s.logger.Warn("approval request failed, treating as denial",
						zap.String("task_id", task.ID), zap.Error(err))
				}
				s.finish(task, models.TaskStatusSkipped, approval.ErrApprovalDenied.Error())
				continue
			}
		}

		wg.Add(1)
		go func(task *models.Task) {
			defer wg.Done()
			// The slot wait uses a background context: a mid-wave cancel
			// must still drain the wave, cancellation lands at the next
			// wave boundary.
			if err := sem.Acquire(context.Background(), 1); err != nil {
				s.finish(task, models.TaskStatusSkipped, "no execution slot")
				return
			}
			defer sem.Release(1)
			if s.executeTask(ctx, g, ledger, task) {
				halt()
			}
		}(task)
	}

	wg.Wait()
}

func (s *Scheduler) gated(task *models.Task) bool {
	return s.gate != nil && s.cfg.ApprovalThreshold > 0 && task.EstimatedCost >= s.cfg.ApprovalThreshold
}

// executeTask runs the attempt loop for one task until it reaches a
// terminal state. Returns true when the ledger refused further spend
// and the run must halt.
func (s *Scheduler) executeTask(ctx context.Context, g *graph.TaskGraph, ledger *budget.Ledger, task *models.Task) (budgetHit bool) {
	w, ok := s.registry.Get(task.Worker)
	if !ok {
		s.finish(task, models.TaskStatusFailed, fmt.Sprintf("no worker registered for type %s", task.Worker))
		return false
	}
	var criteria []models.Criterion
	if cap, ok := s.registry.Capability(task.Worker); ok {
		criteria = cap.Criteria
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &now

	base := task.Input
	if deps := dependencyOutputs(g, task); deps != "" {
		base += "\n\n" + deps
	}
	input := base
	var lastVerdict models.Verdict

	for {
		out, err := w.Execute(ctx, input)
		if err != nil {
			// The worker itself could not run. Surface it as a failing
			// output so the verdict machinery decides retry vs fail.
			out = &worker.Result{Output: "ERROR: " + err.Error()}
		}
		task.Cost += out.Cost
		task.Output = out.Output

		ev := s.eval.Evaluate(out.Output, criteria)
		task.Score = ev.Score
		task.Verdict = ev.Verdict

		s.logger.Debug("task attempt evaluated",
			zap.String("task_id", task.ID),
			zap.String("verdict", string(ev.Verdict)),
			zap.Float64("score", ev.Score),
			zap.Int("retry_count", task.RetryCount))

		switch ev.Verdict {
		case models.VerdictGreen:
			s.succeed(g, task, ledger, &budgetHit)
			return budgetHit

		case models.VerdictYellow:
			if task.RetryCount >= s.cfg.RetryLimit {
				// Exhausted retries on a passable verdict: keep the output.
				s.succeed(g, task, ledger, &budgetHit)
				return budgetHit
			}

		case models.VerdictRed:
			if lastVerdict == models.VerdictRed {
				task.Error = fmt.Sprintf("%s: RED twice in a row", ErrRetryExhausted)
				s.finish(task, models.TaskStatusFailed, task.Error)
				s.commit(task, ledger, &budgetHit)
				return budgetHit
			}
			if task.RetryCount >= s.cfg.RetryLimit && task.RetryCount > 0 {
				task.Error = fmt.Sprintf("%s: verdict %s after %d retries", ErrRetryExhausted, ev.Verdict, task.RetryCount)
				s.finish(task, models.TaskStatusFailed, task.Error)
				s.commit(task, ledger, &budgetHit)
				return budgetHit
			}
		}

		// Retrying costs again; stop early when the next attempt cannot fit.
		if !ledger.Reserve(task.Cost + task.EstimatedCost) {
			budgetHit = true
			if ev.Verdict == models.VerdictYellow {
				s.succeed(g, task, ledger, &budgetHit)
			} else {
				task.Error = "budget exhausted before retry"
				s.finish(task, models.TaskStatusFailed, task.Error)
				s.commit(task, ledger, &budgetHit)
			}
			return true
		}

		lastVerdict = ev.Verdict
		task.RetryCount++
		input = base + "\n\n" + evaluate.Feedback(ev)
	}
}

// dependencyOutputs renders the outputs of the task's dependencies so
// aggregators see what their producers made.
func dependencyOutputs(g *graph.TaskGraph, task *models.Task) string {
	if len(task.DependsOn) == 0 {
		return ""
	}
	var b strings.Builder
	for _, depID := range task.DependsOn {
		dep := g.GetTask(depID)
		if dep == nil || dep.Output == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("Upstream outputs:\n")
		}
		fmt.Fprintf(&b, "--- %s (%s) ---\n%s\n", dep.ID, dep.Worker, dep.Output)
	}
	return b.String()
}

// succeed marks the task succeeded, unblocks dependents, and commits
// its accumulated cost.
func (s *Scheduler) succeed(g *graph.TaskGraph, task *models.Task, ledger *budget.Ledger, budgetHit *bool) {
	s.finish(task, models.TaskStatusSucceeded, "")
	g.MarkSucceeded(task.ID)
	s.commit(task, ledger, budgetHit)
}

// commit settles the task's accumulated cost against the ledger. A
// refused commit flags the run for halt; the task keeps its terminal
// state either way.
func (s *Scheduler) commit(task *models.Task, ledger *budget.Ledger, budgetHit *bool) {
	if err := ledger.Commit(task.ID, task.Cost); err != nil {
		s.logger.Warn("cost commit refused",
			zap.String("task_id", task.ID),
			zap.Float64("cost", task.Cost),
			zap.Error(err))
		*budgetHit = true
	}
}

// finish moves the task to a terminal state and fires the completion hook.
func (s *Scheduler) finish(task *models.Task, status models.TaskStatus, reason string) {
	now := time.Now().UTC()
	task.Status = status
	task.CompletedAt = &now
	if reason != "" {
		task.Error = reason
	}
	if s.onTaskDone != nil {
		s.onTaskDone(task)
	}
}

// skipRemaining marks every non-terminal task in the wave skipped once
// the run is halting.
func (s *Scheduler) skipRemaining(tasks []*models.Task, res *Result) {
	reason := "run halted: budget exhausted"
	if res.Cancelled {
		reason = "run cancelled"
	}
	for _, task := range tasks {
		if task.Status.Terminal() {
			continue
		}
		s.finish(task, models.TaskStatusSkipped, reason)
	}
}
