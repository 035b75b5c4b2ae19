package durable

import "github.com/harrison/parallelorc/internal/models"

// SubmitFunc submits a single task, given the job IDs of its already
// submitted dependencies, and returns the native job ID the external
// system assigned.
type SubmitFunc func(task models.Task, dependencyJobIDs []string) (string, error)

// SubmitInWaves walks the plan in topological waves (every task's
// dependencies submitted before the task itself), calling submit for each
// task with the native job IDs of its already-submitted dependencies. This
// greedy, wave-by-wave submission matches both the local-cluster and
// cloud-batch submission protocols, which differ only in how they encode
// the dependency list to the external scheduler.
func SubmitInWaves(plan *models.Plan, submit SubmitFunc) (map[string]string, error) {
	jobIDs := make(map[string]string, len(plan.Tasks))
	submitted := make(map[string]bool, len(plan.Tasks))

	remaining := len(plan.Tasks)
	for remaining > 0 {
		progressed := false

		for _, t := range plan.Tasks {
			if submitted[t.ID] {
				continue
			}
			if !allSubmitted(plan.Dependencies[t.ID], submitted) {
				continue
			}

			var depJobIDs []string
			for _, dep := range plan.Dependencies[t.ID] {
				depJobIDs = append(depJobIDs, jobIDs[dep])
			}

			jobID, err := submit(t, depJobIDs)
			if err != nil {
				return jobIDs, err
			}

			jobIDs[t.ID] = jobID
			submitted[t.ID] = true
			remaining--
			progressed = true
		}

		if !progressed {
			// Validate() is expected to have rejected cycles already; this
			// is a defensive backstop, not the primary cycle check.
			return jobIDs, models.NewPlanInvalidError("CyclicDependency", "no submittable task found in a submission pass")
		}
	}

	return jobIDs, nil
}

func allSubmitted(deps []string, submitted map[string]bool) bool {
	for _, d := range deps {
		if !submitted[d] {
			return false
		}
	}
	return true
}
