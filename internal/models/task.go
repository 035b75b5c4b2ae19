// Package models defines the core data types shared by the scheduler and
// the backends: tasks, plans, task state, results and run context.
package models

import "fmt"

// Priority bounds: 1 is highest priority, 5 is lowest.
const (
	PriorityHighest = 1
	PriorityLowest  = 5
	PriorityDefault = 3
)

// Task is a single unit of work in a Plan. Tasks are immutable once a Plan
// has been validated; the mutable lifecycle state of a task within a run is
// tracked separately by the scheduler and backends, not on this struct.
type Task struct {
	ID                string
	Name              string
	Description       string
	Priority          int // 1 = highest, 5 = lowest
	EstimatedDuration float64
	Payload           map[string]interface{}
}

// Validate checks the required fields and the documented priority bounds.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("task %s: name is required", t.ID)
	}
	if t.Priority < PriorityHighest || t.Priority > PriorityLowest {
		return fmt.Errorf("task %s: priority %d out of range [%d,%d]", t.ID, t.Priority, PriorityHighest, PriorityLowest)
	}
	return nil
}

// HasCyclicDependencies detects circular dependencies across a set of tasks
// given an explicit dependency map (task id -> set of prerequisite ids),
// using DFS with color marking (white=unvisited, gray=visiting, black=done).
func HasCyclicDependencies(taskIDs []string, dependencies map[string][]string) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	known := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		known[id] = true
	}

	colors := make(map[string]int, len(taskIDs))
	for _, id := range taskIDs {
		colors[id] = white
	}

	var dfs func(string) bool
	dfs = func(node string) bool {
		colors[node] = gray
		for _, dep := range dependencies[node] {
			if dep == node {
				return true
			}
			if !known[dep] {
				continue
			}
			if colors[dep] == gray {
				return true
			}
			if colors[dep] == white && dfs(dep) {
				return true
			}
		}
		colors[node] = black
		return false
	}

	for _, id := range taskIDs {
		if colors[id] == white {
			if dfs(id) {
				return true
			}
		}
	}

	return false
}
