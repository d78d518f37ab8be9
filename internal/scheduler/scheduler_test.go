package scheduler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"workforce/internal/approval"
	"workforce/internal/budget"
	"workforce/internal/graph"
	"workforce/internal/worker"
	"workforce/pkg/models"
)

func newTask(id, workerType string, deps []string, estimate float64) *models.Task {
	return &models.Task{
		ID:            id,
		RunID:         "run-1",
		Worker:        workerType,
		DependsOn:     deps,
		Priority:      3,
		Input:         "do the thing",
		Status:        models.TaskStatusQueued,
		EstimatedCost: estimate,
		CreatedAt:     time.Now().UTC(),
	}
}

func buildGraph(t *testing.T, tasks ...*models.Task) *graph.TaskGraph {
	t.Helper()
	g := graph.New()
	if err := g.Build(tasks); err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func newLedger(limit float64) *budget.Ledger {
	return budget.NewLedger(limit, budget.NewDailyCounter(0))
}

func register(t *testing.T, reg *worker.Registry, cap models.Capability, w worker.Worker) {
	t.Helper()
	if err := reg.Register(cap, w); err != nil {
		t.Fatalf("register %s: %v", cap.Name, err)
	}
}

func okWorker(cost float64) worker.Worker {
	return worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
		return &worker.Result{Output: "all done", Cost: cost}, nil
	})
}

func nonEmpty() []models.Criterion {
	return []models.Criterion{{Name: "has output", Check: models.CheckNonEmpty}}
}

func TestSynthesisWaitsForWholeWave(t *testing.T) {
	reg := worker.NewRegistry()
	var mu sync.Mutex
	var order []string
	record := func(name string, delay time.Duration) worker.Worker {
		return worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			time.Sleep(delay)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return &worker.Result{Output: name + " output", Cost: 1}, nil
		})
	}
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()}, record("research", 30*time.Millisecond))
	register(t, reg, models.Capability{Name: "marketing", Criteria: nonEmpty()}, record("marketing", 5*time.Millisecond))
	register(t, reg, models.Capability{Name: "synthesis", Synthesis: true, Criteria: nonEmpty()}, record("synthesis", 0))

	a := newTask("task-a", "research", nil, 1)
	b := newTask("task-b", "marketing", nil, 1)
	c := newTask("task-c", "synthesis", []string{"task-a", "task-b"}, 1)
	g := buildGraph(t, a, b, c)

	s := New(reg, nil, nil, nil, Config{}, zap.NewNop())
	res, err := s.Run(context.Background(), g, newLedger(25), "run-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(order) != 3 || order[2] != "synthesis" {
		t.Errorf("synthesis must run last, got order %v", order)
	}
	for _, task := range res.Tasks {
		if task.Status != models.TaskStatusSucceeded {
			t.Errorf("task %s status = %s, want succeeded", task.ID, task.Status)
		}
	}
	if res.Verdict != models.VerdictGreen {
		t.Errorf("run verdict = %s, want GREEN", res.Verdict)
	}
	if res.TotalCost != 3 {
		t.Errorf("total cost = %v, want 3", res.TotalCost)
	}
}

func TestGreenTaskIsNeverRetried(t *testing.T) {
	reg := worker.NewRegistry()
	var calls int32
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()},
		worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			atomic.AddInt32(&calls, 1)
			return &worker.Result{Output: "clean result", Cost: 2}, nil
		}))

	task := newTask("task-a", "research", nil, 2)
	g := buildGraph(t, task)

	s := New(reg, nil, nil, nil, Config{}, zap.NewNop())
	if _, err := s.Run(context.Background(), g, newLedger(25), "run-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("worker called %d times, want 1", n)
	}
	if task.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", task.RetryCount)
	}
	if task.Verdict != models.VerdictGreen || task.Status != models.TaskStatusSucceeded {
		t.Errorf("got (%s, %s), want (GREEN, succeeded)", task.Verdict, task.Status)
	}
}

func TestYellowRetriesWithFeedbackThenGreen(t *testing.T) {
	criteria := []models.Criterion{
		{Name: "has summary", Check: models.CheckContains, Arg: "summary", Weight: 4},
		{Name: "has details", Check: models.CheckContains, Arg: "details", Weight: 1},
	}

	reg := worker.NewRegistry()
	var calls int32
	var retryInput string
	register(t, reg, models.Capability{Name: "research", Criteria: criteria},
		worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return &worker.Result{Output: "summary only", Cost: 1.5}, nil
			}
			retryInput = input
			return &worker.Result{Output: "summary with details", Cost: 1.5}, nil
		}))

	task := newTask("task-a", "research", nil, 2)
	g := buildGraph(t, task)

	s := New(reg, nil, nil, nil, Config{}, zap.NewNop())
	res, err := s.Run(context.Background(), g, newLedger(25), "run-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if task.Status != models.TaskStatusSucceeded || task.Verdict != models.VerdictGreen {
		t.Errorf("got (%s, %s), want (succeeded, GREEN)", task.Status, task.Verdict)
	}
	if task.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", task.RetryCount)
	}
	if !strings.Contains(retryInput, "has details") {
		t.Errorf("retry input missing unmet criterion feedback: %q", retryInput)
	}
	// Both attempts cost money and the full amount is settled once.
	if task.Cost != 3 {
		t.Errorf("task cost = %v, want 3", task.Cost)
	}
	if res.TotalCost != 3 {
		t.Errorf("committed cost = %v, want 3", res.TotalCost)
	}
}

func TestYellowAfterExhaustedRetriesSucceeds(t *testing.T) {
	criteria := []models.Criterion{
		{Name: "has summary", Check: models.CheckContains, Arg: "summary", Weight: 4},
		{Name: "has details", Check: models.CheckContains, Arg: "details", Weight: 1},
	}

	reg := worker.NewRegistry()
	var calls int32
	register(t, reg, models.Capability{Name: "research", Criteria: criteria},
		worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			atomic.AddInt32(&calls, 1)
			return &worker.Result{Output: "summary only", Cost: 1}, nil
		}))

	task := newTask("task-a", "research", nil, 1)
	g := buildGraph(t, task)

	s := New(reg, nil, nil, nil, Config{RetryLimit: 2}, zap.NewNop())
	if _, err := s.Run(context.Background(), g, newLedger(25), "run-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("worker called %d times, want 3 (initial + 2 retries)", n)
	}
	if task.Status != models.TaskStatusSucceeded || task.Verdict != models.VerdictYellow {
		t.Errorf("got (%s, %s), want (succeeded, YELLOW)", task.Status, task.Verdict)
	}
	if task.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", task.RetryCount)
	}
}

func TestRedTwiceFailsTask(t *testing.T) {
	reg := worker.NewRegistry()
	var calls int32
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()},
		worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			atomic.AddInt32(&calls, 1)
			return &worker.Result{Output: "   ", Cost: 1}, nil
		}))

	task := newTask("task-a", "research", nil, 1)
	g := buildGraph(t, task)

	s := New(reg, nil, nil, nil, Config{}, zap.NewNop())
	res, err := s.Run(context.Background(), g, newLedger(25), "run-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("worker called %d times, want 2 (one defensive retry)", n)
	}
	if task.Status != models.TaskStatusFailed || task.Verdict != models.VerdictRed {
		t.Errorf("got (%s, %s), want (failed, RED)", task.Status, task.Verdict)
	}
	if !strings.Contains(task.Error, "retries exhausted") {
		t.Errorf("task error = %q, want retries exhausted", task.Error)
	}
	if res.Verdict != models.VerdictRed {
		t.Errorf("run verdict = %s, want RED", res.Verdict)
	}
}

func TestFailedDependencySkipsDownstreamOnly(t *testing.T) {
	reg := worker.NewRegistry()
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()},
		worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			return &worker.Result{Output: "", Cost: 1}, nil
		}))
	register(t, reg, models.Capability{Name: "marketing", Criteria: nonEmpty()}, okWorker(1))
	register(t, reg, models.Capability{Name: "sales", Criteria: nonEmpty()}, okWorker(1))

	failing := newTask("task-a", "research", nil, 1)
	independent := newTask("task-b", "marketing", nil, 1)
	downstream := newTask("task-c", "sales", []string{"task-a"}, 1)
	g := buildGraph(t, failing, independent, downstream)

	s := New(reg, nil, nil, nil, Config{}, zap.NewNop())
	res, err := s.Run(context.Background(), g, newLedger(25), "run-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if failing.Status != models.TaskStatusFailed {
		t.Errorf("task-a status = %s, want failed", failing.Status)
	}
	if independent.Status != models.TaskStatusSucceeded {
		t.Errorf("task-b status = %s, want succeeded (independent of failure)", independent.Status)
	}
	if downstream.Status != models.TaskStatusSkipped {
		t.Errorf("task-c status = %s, want skipped", downstream.Status)
	}
	if !strings.Contains(downstream.Error, "task-a") {
		t.Errorf("skip reason should name the failed dependency, got %q", downstream.Error)
	}
	if res.Verdict != models.VerdictRed {
		t.Errorf("run verdict = %s, want RED", res.Verdict)
	}
}

func TestBudgetExceededHaltsBeforeDispatch(t *testing.T) {
	reg := worker.NewRegistry()
	var calls int32
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()},
		worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			atomic.AddInt32(&calls, 1)
			return &worker.Result{Output: "done", Cost: 30}, nil
		}))
	register(t, reg, models.Capability{Name: "synthesis", Synthesis: true, Criteria: nonEmpty()}, okWorker(1))

	expensive := newTask("task-a", "research", nil, 30)
	dependent := newTask("task-b", "synthesis", []string{"task-a"}, 1)
	g := buildGraph(t, expensive, dependent)

	ledger := newLedger(25)
	s := New(reg, nil, nil, nil, Config{}, zap.NewNop())
	res, err := s.Run(context.Background(), g, ledger, "run-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !res.BudgetExceeded {
		t.Error("result should report budget exceeded")
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("worker dispatched %d times past the limit, want 0", n)
	}
	if expensive.Status != models.TaskStatusSkipped || dependent.Status != models.TaskStatusSkipped {
		t.Errorf("statuses = (%s, %s), want both skipped", expensive.Status, dependent.Status)
	}
	if ledger.Spent() != 0 {
		t.Errorf("ledger spent = %v, want 0", ledger.Spent())
	}
}

func TestApprovalDeniedSkipsOnlyGatedTask(t *testing.T) {
	reg := worker.NewRegistry()
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()}, okWorker(80))
	register(t, reg, models.Capability{Name: "marketing", Criteria: nonEmpty()}, okWorker(2))

	gatedTask := newTask("task-a", "research", nil, 80)
	cheap := newTask("task-b", "marketing", nil, 2)
	g := buildGraph(t, gatedTask, cheap)

	s := New(reg, nil, approval.Deny(), nil, Config{ApprovalThreshold: 50}, zap.NewNop())
	res, err := s.Run(context.Background(), g, newLedger(200), "run-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if gatedTask.Status != models.TaskStatusSkipped {
		t.Errorf("gated task status = %s, want skipped", gatedTask.Status)
	}
	if gatedTask.Error != "approval denied" {
		t.Errorf("gated task error = %q, want approval denied", gatedTask.Error)
	}
	if cheap.Status != models.TaskStatusSucceeded {
		t.Errorf("sibling status = %s, want succeeded", cheap.Status)
	}
	if res.BudgetExceeded {
		t.Error("denial is not a budget event")
	}
}

func TestMaxParallelBoundsWave(t *testing.T) {
	reg := worker.NewRegistry()
	var inFlight, peak int32
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()},
		worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return &worker.Result{Output: "done", Cost: 1}, nil
		}))

	tasks := []*models.Task{
		newTask("task-a", "research", nil, 1),
		newTask("task-b", "research", nil, 1),
		newTask("task-c", "research", nil, 1),
		newTask("task-d", "research", nil, 1),
	}
	g := buildGraph(t, tasks...)

	s := New(reg, nil, nil, nil, Config{MaxParallel: 2}, zap.NewNop())
	if _, err := s.Run(context.Background(), g, newLedger(25), "run-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestCancellationTakesEffectAtWaveBoundary(t *testing.T) {
	reg := worker.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()},
		worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
			cancel()
			return &worker.Result{Output: "finished anyway", Cost: 1}, nil
		}))
	register(t, reg, models.Capability{Name: "synthesis", Synthesis: true, Criteria: nonEmpty()}, okWorker(1))

	first := newTask("task-a", "research", nil, 1)
	second := newTask("task-b", "synthesis", []string{"task-a"}, 1)
	g := buildGraph(t, first, second)

	s := New(reg, nil, nil, nil, Config{}, zap.NewNop())
	res, err := s.Run(ctx, g, newLedger(25), "run-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !res.Cancelled {
		t.Error("result should report cancellation")
	}
	// The in-flight wave drains, only later waves are cut off.
	if first.Status != models.TaskStatusSucceeded {
		t.Errorf("in-flight task status = %s, want succeeded", first.Status)
	}
	if second.Status != models.TaskStatusSkipped {
		t.Errorf("next-wave task status = %s, want skipped", second.Status)
	}
}

func TestTaskDoneHookFiresPerTerminalTask(t *testing.T) {
	reg := worker.NewRegistry()
	register(t, reg, models.Capability{Name: "research", Criteria: nonEmpty()}, okWorker(1))

	a := newTask("task-a", "research", nil, 1)
	b := newTask("task-b", "research", nil, 1)
	g := buildGraph(t, a, b)

	var mu sync.Mutex
	seen := map[string]models.TaskStatus{}
	s := New(reg, nil, nil, nil, Config{}, zap.NewNop())
	s.OnTaskDone(func(task *models.Task) {
		mu.Lock()
		seen[task.ID] = task.Status
		mu.Unlock()
	})

	if _, err := s.Run(context.Background(), g, newLedger(25), "run-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("hook fired for %d tasks, want 2", len(seen))
	}
	for id, status := range seen {
		if status != models.TaskStatusSucceeded {
			t.Errorf("hook saw %s with status %s, want succeeded", id, status)
		}
	}
}
