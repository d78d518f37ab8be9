package orchestrator

import (
	"context"
	"testing"
	"time"

	"workforce/internal/worker"
	"workforce/pkg/models"
)

func planRun() *models.Run {
	return &models.Run{ID: "run-1", Goal: "research the market", Priority: 3, CreatedAt: time.Now().UTC()}
}

func TestPlanSingleWorkerHasNoSynthesis(t *testing.T) {
	reg := worker.NewRegistry()
	caps := []models.Capability{{Name: "research", CostPerTask: 2}}

	tasks := planTasks(planRun(), caps, reg, "")
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Worker != "research" || tasks[0].Wave != 1 {
		t.Errorf("task = %s wave %d, want research wave 1", tasks[0].Worker, tasks[0].Wave)
	}
	if tasks[0].EstimatedCost != 2 {
		t.Errorf("estimate = %v, want 2", tasks[0].EstimatedCost)
	}
}

func TestPlanMultiWorkerAddsSynthesisAfterAll(t *testing.T) {
	reg := worker.NewRegistry()
	synth := models.Capability{Name: "synthesis", Synthesis: true, CostPerTask: 1}
	noop := worker.Func(func(ctx context.Context, input string) (*worker.Result, error) {
		return &worker.Result{Output: input}, nil
	})
	if err := reg.Register(synth, noop); err != nil {
		t.Fatalf("register: %v", err)
	}

	caps := []models.Capability{
		{Name: "marketing", CostPerTask: 2},
		{Name: "research", CostPerTask: 2},
	}
	tasks := planTasks(planRun(), caps, reg, "")
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}

	last := tasks[len(tasks)-1]
	if last.Worker != "synthesis" {
		t.Fatalf("last task = %s, want synthesis", last.Worker)
	}
	if last.Wave != 2 {
		t.Errorf("synthesis wave = %d, want 2", last.Wave)
	}
	if len(last.DependsOn) != 2 {
		t.Errorf("synthesis depends on %d tasks, want 2", len(last.DependsOn))
	}
}

func TestPlanSerializesResourceCollisions(t *testing.T) {
	reg := worker.NewRegistry()
	caps := []models.Capability{
		{Name: "marketing", Resources: []string{"crm"}, ParallelSafe: false, CostPerTask: 2},
		{Name: "research", CostPerTask: 2},
		{Name: "sales", Resources: []string{"crm"}, ParallelSafe: false, CostPerTask: 3},
	}

	tasks := planTasks(planRun(), caps, reg, "")
	byWorker := map[string]*models.Task{}
	for _, task := range tasks {
		byWorker[task.Worker] = task
	}

	if byWorker["marketing"].Wave != 1 {
		t.Errorf("marketing wave = %d, want 1", byWorker["marketing"].Wave)
	}
	if byWorker["research"].Wave != 1 {
		t.Errorf("research wave = %d, want 1 (no collision)", byWorker["research"].Wave)
	}
	if byWorker["sales"].Wave != 2 {
		t.Errorf("sales wave = %d, want 2 (crm collision with marketing)", byWorker["sales"].Wave)
	}
}

func TestPlanParallelSafeSharersStayInOneWave(t *testing.T) {
	reg := worker.NewRegistry()
	caps := []models.Capability{
		{Name: "marketing", Resources: []string{"analytics"}, ParallelSafe: true},
		{Name: "research", Resources: []string{"analytics"}, ParallelSafe: true},
	}

	tasks := planTasks(planRun(), caps, reg, "")
	for _, task := range tasks {
		if task.Wave != 1 {
			t.Errorf("%s wave = %d, want 1 (both parallel-safe)", task.Worker, task.Wave)
		}
	}
}

func TestPlanRecallContextLandsInInput(t *testing.T) {
	reg := worker.NewRegistry()
	caps := []models.Capability{{Name: "research"}}

	tasks := planTasks(planRun(), caps, reg, "Relevant past executions:\n- [GREEN, 3.00 EUR] shipped")
	if got := tasks[0].Input; got == "research the market" {
		t.Error("recall context missing from task input")
	}
}
