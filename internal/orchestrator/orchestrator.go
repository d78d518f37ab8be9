// Package orchestrator coordinates the workflow from submitted goal to
// terminal run. It wires together: routing -> planning -> graph ->
// scheduler -> experience capture.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workforce/internal/approval"
	"workforce/internal/budget"
	"workforce/internal/config"
	"workforce/internal/evaluate"
	"workforce/internal/experience"
	"workforce/internal/graph"
	"workforce/internal/notify"
	"workforce/internal/scheduler"
	"workforce/internal/signal"
	"workforce/internal/state"
	"workforce/internal/worker"
	"workforce/pkg/models"
)

// ErrUnroutableGoal indicates no registered capability matches the
// goal. Submission is rejected before any cost is incurred.
var ErrUnroutableGoal = errors.New("no worker capability matches goal")

// signalPollInterval is how often a run checks for an external cancel
// file between watcher events.
const signalPollInterval = 500 * time.Millisecond

// Constraints are the per-submission execution limits.
type Constraints struct {
	// Budget is the run spend limit in EUR. Zero uses the configured default.
	Budget float64
	// Priority is the run priority (1 is highest, 5 is background).
	// Zero uses the default of 3.
	Priority int
	// AutoApprove bypasses the approval gate for this run.
	AutoApprove bool
}

// Options contains the collaborators for an Orchestrator.
type Options struct {
	// Registry is the closed set of worker capabilities. Required.
	Registry *worker.Registry
	// Config holds budgets and tuning. Nil uses defaults.
	Config *config.Config
	// Gate answers approval requests for high-cost tasks. Nil denies them.
	Gate approval.Gate
	// Notifier fans out run lifecycle events. Nil disables notifications.
	Notifier *notify.Notifier
	// StateDB persists runs and tasks. Nil disables persistence.
	StateDB *state.DB
	// Experience recalls and records past executions. Nil disables recall.
	Experience experience.Store
	// Daily is the process-wide daily spend counter shared by all runs.
	// Nil creates one from the configured daily limit.
	Daily *budget.DailyCounter
	// Signals watches for out-of-band cancel requests. Optional.
	Signals *signal.Manager
	// Logger receives structured run logs. Nil logs nothing.
	Logger *zap.Logger
}

// Orchestrator executes submitted goals.
type Orchestrator struct {
	registry *worker.Registry
	cfg      *config.Config
	gate     approval.Gate
	notifier *notify.Notifier
	stateDB  *state.DB
	exp      experience.Store
	daily    *budget.DailyCounter
	signals  *signal.Manager
	logger   *zap.Logger
	eval     *evaluate.Evaluator

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates an orchestrator from its collaborators.
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires a worker registry")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.New(opts.Logger)
	}
	if opts.Daily == nil {
		opts.Daily = budget.NewDailyCounter(cfg.Budgets.DailyLimit)
	}
	gate := opts.Gate
	if gate == nil {
		gate = approval.Deny()
	}
	if cfg.Budgets.ApprovalTimeout > 0 {
		gate = approval.NewTimeoutGate(gate, cfg.Budgets.ApprovalTimeout)
	}

	return &Orchestrator{
		registry: opts.Registry,
		cfg:      cfg,
		gate:     gate,
		notifier: opts.Notifier,
		stateDB:  opts.StateDB,
		exp:      opts.Experience,
		daily:    opts.Daily,
		signals:  opts.Signals,
		logger:   opts.Logger,
		eval:     evaluate.NewWithThresholds(cfg.Quality.GreenThreshold, cfg.Quality.YellowThreshold),
	}, nil
}

// Submit validates, plans, and executes a goal, blocking until the run
// reaches a terminal state. Unroutable goals are rejected before any
// cost is incurred.
func (o *Orchestrator) Submit(ctx context.Context, goal string, c Constraints) (*models.Run, error) {
	if goal == "" {
		return nil, fmt.Errorf("empty goal")
	}

	caps := o.registry.Route(goal)
	if len(caps) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnroutableGoal, goal)
	}

	run := &models.Run{
		ID:          "run-" + uuid.New().String(),
		Goal:        goal,
		Status:      models.RunStatusPending,
		Priority:    c.Priority,
		BudgetLimit: c.Budget,
		CreatedAt:   time.Now().UTC(),
	}
	if run.Priority <= 0 {
		run.Priority = 3
	}
	if run.BudgetLimit <= 0 {
		run.BudgetLimit = o.cfg.Budgets.RunLimit
	}

	recall := o.recallContext(ctx, goal)
	run.Tasks = planTasks(run, caps, o.registry, recall)

	g := graph.New()
	if err := g.Build(run.Tasks); err != nil {
		return nil, fmt.Errorf("build task graph: %w", err)
	}
	run.SortTasks()
	o.persistRun(run)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.trackCancel(run.ID, cancel)
	defer o.untrackCancel(run.ID)
	if o.signals != nil {
		stop := o.watchCancelSignal(runCtx, run.ID, cancel)
		defer stop()
	}

	now := time.Now().UTC()
	run.Status = models.RunStatusInProgress
	run.StartedAt = &now
	o.persistRun(run)
	o.notifier.Emit(models.Event{Type: models.EventRunStarted, RunID: run.ID, Message: goal})

	gate := o.gate
	if c.AutoApprove {
		gate = approval.Auto()
	}
	sched := scheduler.New(o.registry, o.eval, gate, o.notifier, scheduler.Config{
		MaxParallel:       o.cfg.Scheduler.MaxParallel,
		RetryLimit:        o.cfg.Scheduler.RetryLimit,
		ApprovalThreshold: o.cfg.Budgets.ApprovalThreshold,
	}, o.logger)
	sched.OnTaskDone(o.persistTask)

	ledger := budget.NewLedger(run.BudgetLimit, o.daily)
	res, err := sched.Run(runCtx, g, ledger, run.ID)
	if err != nil {
		o.finishRun(run, models.RunStatusFailed, err.Error())
		return run, err
	}

	run.Tasks = res.Tasks
	run.Cost = res.TotalCost
	run.Verdict = res.Verdict
	run.BudgetExceeded = res.BudgetExceeded

	switch {
	case res.Cancelled:
		o.finishRun(run, models.RunStatusCancelled, "")
	case runFailed(res):
		o.finishRun(run, models.RunStatusFailed, "all tasks failed or were skipped")
	default:
		o.finishRun(run, models.RunStatusCompleted, "")
	}

	o.captureExperience(run)
	if o.signals != nil {
		o.signals.Clear(run.ID)
	}
	return run, nil
}

// Handle tracks a run submitted asynchronously. The zero value is not
// usable; SubmitAsync creates handles.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	run    *models.Run
	err    error
}

// SubmitAsync routes the goal synchronously, so an unroutable goal is
// rejected before any cost, then executes the run in the background.
func (o *Orchestrator) SubmitAsync(ctx context.Context, goal string, c Constraints) (*Handle, error) {
	if goal == "" {
		return nil, fmt.Errorf("empty goal")
	}
	if len(o.registry.Route(goal)) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnroutableGoal, goal)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.run, h.err = o.Submit(runCtx, goal, c)
	}()
	return h, nil
}

// Cancel stops the run at the next wave boundary. In-flight tasks are
// allowed to finish.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the run reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run is terminal or the context expires.
func (h *Handle) Wait(ctx context.Context) (*models.Run, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.run, h.err
	}
}

// Cancel requests cancellation of a run. The run stops at the next wave
// boundary; in-flight tasks finish. Works across processes when a
// signal manager is wired.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	cancel, local := o.cancels[runID]
	o.mu.Unlock()
	if local {
		cancel()
	}
	if o.signals != nil {
		return o.signals.RequestCancel(runID)
	}
	if !local {
		return fmt.Errorf("run %s is not executing here and no signal channel is configured", runID)
	}
	return nil
}

// runFailed reports whether the run produced nothing usable: at least
// one task failed and none succeeded.
func runFailed(res *scheduler.Result) bool {
	anyFailed := false
	for _, t := range res.Tasks {
		switch t.Status {
		case models.TaskStatusSucceeded:
			return false
		case models.TaskStatusFailed:
			anyFailed = true
		}
	}
	return anyFailed
}

func (o *Orchestrator) finishRun(run *models.Run, status models.RunStatus, errMsg string) {
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	if errMsg != "" {
		run.Error = errMsg
	}
	o.persistRun(run)

	eventType := models.EventRunCompleted
	switch status {
	case models.RunStatusFailed:
		eventType = models.EventRunFailed
	case models.RunStatusCancelled:
		eventType = models.EventRunCancelled
	}
	o.notifier.Emit(models.Event{
		Type:    eventType,
		RunID:   run.ID,
		Message: fmt.Sprintf("verdict %s, cost %.2f EUR", run.Verdict, run.Cost),
	})
}

// persistRun writes the run to the state store. Persistence failures
// are logged, never fatal to the run.
func (o *Orchestrator) persistRun(run *models.Run) {
	if o.stateDB == nil {
		return
	}
	if err := o.stateDB.SaveRun(run); err != nil {
		o.logger.Warn("persist run failed", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	if err := o.stateDB.SaveTasks(run.Tasks); err != nil {
		o.logger.Warn("persist tasks failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (o *Orchestrator) persistTask(task *models.Task) {
	if o.stateDB == nil {
		return
	}
	if err := o.stateDB.SaveTask(task); err != nil {
		o.logger.Warn("persist task failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func (o *Orchestrator) trackCancel(runID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancels == nil {
		o.cancels = make(map[string]context.CancelFunc)
	}
	o.cancels[runID] = cancel
}

func (o *Orchestrator) untrackCancel(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, runID)
}

// watchCancelSignal polls the signal manager and cancels the run
// context when a cancel file appears. Returns a stop function.
func (o *Orchestrator) watchCancelSignal(ctx context.Context, runID string, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(signalPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if o.signals.Cancelled(runID) {
					cancel()
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
