// Package graph provides the task dependency graph and its wave view.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"workforce/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// TaskGraph is a directed acyclic graph of task dependencies. Tasks are
// nodes, edges represent "blocked by" relationships. Waves are a derived
// view: a task's wave index is strictly greater than the maximum wave
// index of all its dependencies.
type TaskGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// succeeded tracks which tasks have reached a successful terminal state.
	succeeded map[string]bool
}

// New creates a new empty task graph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes:     make(map[string]*models.Task),
		edges:     make(map[string][]string),
		succeeded: make(map[string]bool),
	}
}

// Build constructs the graph from a slice of tasks and assigns wave
// indexes. Returns an error if a cycle is detected or a dependency
// references an unknown task.
func (g *TaskGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, task := range tasks {
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("task %s depends on unknown task %s", task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.assignWavesLocked()
	return nil
}

// hasCycleLocked detects back edges via depth-first search with coloring.
// Caller must hold g.mu.
func (g *TaskGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// assignWavesLocked sets each task's wave to one more than the deepest
// wave among its dependencies, or to the task's pre-assigned wave when
// the decomposition already serialized it further out. Caller must hold
// g.mu and have verified the graph is acyclic.
func (g *TaskGraph) assignWavesLocked() {
	memo := make(map[string]int, len(g.nodes))

	var depth func(id string) int
	depth = func(id string) int {
		if w, ok := memo[id]; ok {
			return w
		}
		wave := 1
		for _, depID := range g.edges[id] {
			if d := depth(depID) + 1; d > wave {
				wave = d
			}
		}
		// Decomposition may push a task into a later wave than its
		// dependencies require (resource serialization).
		if t := g.nodes[id]; t.Wave > wave {
			wave = t.Wave
		}
		memo[id] = wave
		return wave
	}

	for id, task := range g.nodes {
		task.Wave = depth(id)
	}
}

// Waves returns the tasks grouped by wave index in strictly increasing
// order. Within a wave, tasks are ordered by priority, then by ID for
// determinism.
func (g *TaskGraph) Waves() [][]*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byWave := make(map[int][]*models.Task)
	for _, task := range g.nodes {
		byWave[task.Wave] = append(byWave[task.Wave], task)
	}

	indexes := make([]int, 0, len(byWave))
	for w := range byWave {
		indexes = append(indexes, w)
	}
	sort.Ints(indexes)

	waves := make([][]*models.Task, 0, len(indexes))
	for _, w := range indexes {
		tasks := byWave[w]
		sort.Slice(tasks, func(i, j int) bool {
			if tasks[i].Priority != tasks[j].Priority {
				return tasks[i].Priority < tasks[j].Priority
			}
			return tasks[i].ID < tasks[j].ID
		})
		waves = append(waves, tasks)
	}
	return waves
}

// MarkSucceeded records that a task reached a successful terminal state,
// unblocking its dependents.
func (g *TaskGraph) MarkSucceeded(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.succeeded[taskID] = true
}

// DepsSatisfied returns true if every dependency of the task has been
// marked succeeded.
func (g *TaskGraph) DepsSatisfied(taskID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, depID := range g.edges[taskID] {
		if !g.succeeded[depID] {
			return false
		}
	}
	return true
}

// GetTask returns the task for a given ID, or nil if not found.
func (g *TaskGraph) GetTask(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Tasks returns all tasks ordered by ID.
func (g *TaskGraph) Tasks() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(g.nodes))
	for _, task := range g.nodes {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// Size returns the number of tasks in the graph.
func (g *TaskGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of tasks that the given task depends on.
func (g *TaskGraph) GetDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[taskID]
}

// GetDependents returns the IDs of tasks that directly depend on the
// given task.
func (g *TaskGraph) GetDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(taskID)
}

func (g *TaskGraph) dependentsLocked(taskID string) []string {
	var dependents []string
	for id, deps := range g.edges {
		for _, depID := range deps {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// TransitiveDependents returns the IDs of all tasks that depend on the
// given task directly or through other tasks, sorted by ID.
func (g *TaskGraph) TransitiveDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	queue := g.dependentsLocked(taskID)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, g.dependentsLocked(id)...)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
