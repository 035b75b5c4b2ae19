// Package dag validates task plans and computes dependency-respecting
// orderings over them.
package dag

import (
	"sort"

	"github.com/harrison/parallelorc/internal/models"
)

// Validate checks a plan for duplicate task ids, references to unknown
// tasks, and cyclic dependencies. It returns the first violation found, as
// a *models.PlanInvalidError.
func Validate(plan *models.Plan) error {
	seen := make(map[string]bool, len(plan.Tasks))
	ids := make([]string, 0, len(plan.Tasks))

	for _, t := range plan.Tasks {
		if seen[t.ID] {
			return models.NewPlanInvalidError("DuplicateTaskId", t.ID)
		}
		seen[t.ID] = true
		ids = append(ids, t.ID)

		if err := t.Validate(); err != nil {
			return models.NewPlanInvalidError("InvalidTask", err.Error())
		}
	}

	for taskID, deps := range plan.Dependencies {
		if !seen[taskID] {
			return models.NewPlanInvalidError("UnknownDependency", "task "+taskID+" has dependencies but is not in the plan")
		}
		for _, dep := range deps {
			if !seen[dep] {
				return models.NewPlanInvalidError("UnknownDependency", taskID+" depends on unknown task "+dep)
			}
		}
	}

	if models.HasCyclicDependencies(ids, plan.Dependencies) {
		return models.NewPlanInvalidError("CyclicDependency", "")
	}

	return nil
}

// TopologicalOrder returns task ids in an order that respects dependencies,
// grouped into waves (sets of tasks whose dependencies are all satisfied by
// earlier waves). Within a wave, ties are broken by priority ascending (1
// highest) and then by insertion order ascending. Used by distributed
// backends to decide submission order; the in-memory backend does not
// require a precomputed order since it claims work dynamically.
func TopologicalOrder(plan *models.Plan) ([][]string, error) {
	if err := Validate(plan); err != nil {
		return nil, err
	}

	indexOf := make(map[string]int, len(plan.Tasks))
	priorityOf := make(map[string]int, len(plan.Tasks))
	for i, t := range plan.Tasks {
		indexOf[t.ID] = i
		priorityOf[t.ID] = t.Priority
	}

	inDegree := make(map[string]int, len(plan.Tasks))
	for _, t := range plan.Tasks {
		inDegree[t.ID] = len(plan.Dependencies[t.ID])
	}

	remaining := len(plan.Tasks)
	var waves [][]string

	for remaining > 0 {
		var wave []string
		for _, t := range plan.Tasks {
			if inDegree[t.ID] == 0 {
				wave = append(wave, t.ID)
			}
		}
		if len(wave) == 0 {
			// Validate already rejects cycles, so this should not happen.
			return nil, models.NewPlanInvalidError("CyclicDependency", "")
		}

		sort.Slice(wave, func(i, j int) bool {
			if priorityOf[wave[i]] != priorityOf[wave[j]] {
				return priorityOf[wave[i]] < priorityOf[wave[j]]
			}
			return indexOf[wave[i]] < indexOf[wave[j]]
		})

		waves = append(waves, wave)

		for _, id := range wave {
			inDegree[id] = -1 // mark consumed, never selected again
			remaining--
		}
		for _, id := range wave {
			for _, dependent := range plan.DirectDependents(id) {
				if inDegree[dependent] > 0 {
					inDegree[dependent]--
				}
			}
		}
	}

	return waves, nil
}
