package orchestrator

import (
	"fmt"
	"strings"

	"workforce/internal/worker"
	"workforce/pkg/models"
)

// planTasks turns the matched capabilities into the run's task list.
// One task per matched worker type; when more than one worker matched
// and a synthesizer is registered, a synthesis task depending on all of
// them aggregates their outputs. Workers that touch a shared resource
// without being parallel-safe are serialized into later waves.
func planTasks(run *models.Run, caps []models.Capability, registry *worker.Registry, recall string) []*models.Task {
	input := run.Goal
	if recall != "" {
		input = run.Goal + "\n\n" + recall
	}

	tasks := make([]*models.Task, 0, len(caps)+1)
	for _, cap := range caps {
		tasks = append(tasks, &models.Task{
			ID:            taskID(run.ID, cap.Name),
			RunID:         run.ID,
			Worker:        cap.Name,
			Wave:          1,
			Priority:      run.Priority,
			Input:         input,
			Status:        models.TaskStatusQueued,
			EstimatedCost: cap.CostPerTask,
			CreatedAt:     run.CreatedAt,
		})
	}

	serializeCollisions(tasks, caps)

	if len(tasks) > 1 {
		if synth, ok := registry.Synthesizer(); ok {
			dependsOn := make([]string, len(tasks))
			lastWave := 0
			for i, t := range tasks {
				dependsOn[i] = t.ID
				if t.Wave > lastWave {
					lastWave = t.Wave
				}
			}
			tasks = append(tasks, &models.Task{
				ID:            taskID(run.ID, synth.Name),
				RunID:         run.ID,
				Worker:        synth.Name,
				Wave:          lastWave + 1,
				DependsOn:     dependsOn,
				Priority:      run.Priority,
				Input:         synthesisInput(run.Goal, tasks),
				Status:        models.TaskStatusQueued,
				EstimatedCost: synth.CostPerTask,
				CreatedAt:     run.CreatedAt,
			})
		}
	}

	return tasks
}

// serializeCollisions pushes tasks into later waves when their workers
// declare a common resource and either side is not parallel-safe. Order
// within a collision group follows the deterministic capability order.
func serializeCollisions(tasks []*models.Task, caps []models.Capability) {
	for i := range tasks {
		for j := 0; j < i; j++ {
			if !caps[i].SharesResource(caps[j]) {
				continue
			}
			if caps[i].ParallelSafe && caps[j].ParallelSafe {
				continue
			}
			if tasks[i].Wave <= tasks[j].Wave {
				tasks[i].Wave = tasks[j].Wave + 1
			}
		}
	}
}

// synthesisInput builds the aggregator prompt. Upstream outputs are not
// known yet at planning time, so it names the producers; their outputs
// are collected from the run record.
func synthesisInput(goal string, producers []*models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesize the results for goal: %s\n\nUpstream tasks:\n", goal)
	for _, t := range producers {
		fmt.Fprintf(&b, "- %s (%s)\n", t.ID, t.Worker)
	}
	return b.String()
}

func taskID(runID, workerName string) string {
	return runID + "-" + workerName
}
