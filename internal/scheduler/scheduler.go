// Package scheduler drives a Plan to completion against a pluggable
// backend, owning retry bookkeeping and run-level completion detection.
// The backend owns its own concurrency model (work-stealing pickup loop
// in-process, or submit-and-poll against an external system); the
// scheduler's job is to hand it work, apply the wall-clock ceiling, and
// assemble the final summary. Retries are applied inside each backend,
// through this package's RetryManager.
package scheduler

import (
	"context"
	"time"

	"github.com/harrison/parallelorc/internal/backend"
	"github.com/harrison/parallelorc/internal/dag"
	"github.com/harrison/parallelorc/internal/models"
)

// Options configures polling cadence and timeouts. Both fields are left
// configurable rather than hardcoded, since the ideal values depend on the
// backend's own latency characteristics (an in-memory pool reacts in
// milliseconds; a cluster scheduler or cloud batch service may take
// seconds to report state).
type Options struct {
	// PollInterval is not read by Run; the durable backends take their
	// poll interval from their own PollInterval field. Default 10s.
	PollInterval time.Duration
	// WaitCeiling is the wall-clock budget for a single run before
	// remaining non-terminal tasks are marked TERMINAL_FAILED, with a
	// models.TimeoutError as the recorded cause (its message, not the bare
	// string "timeout"). Default 2h.
	WaitCeiling time.Duration
	// Retry is not read by Run; each backend applies its own RetryPolicy.
	Retry RetryPolicy
}

// DefaultOptions matches the documented defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval: 10 * time.Second,
		WaitCeiling:  2 * time.Hour,
		Retry:        DefaultRetryPolicy(),
	}
}

// Run validates the plan, submits it to the backend, waits for completion
// (subject to the wall-clock ceiling), and returns the aggregated
// RunSummary. Backend errors (failures to initialize, submit, or wait) are
// run-level and abort the run; individual task failures are local and do
// not abort — they degrade to TERMINAL_FAILED after the retry ceiling, and
// their dependents are marked SKIPPED.
func Run(ctx context.Context, runCtx *models.RunContext, b backend.Backend, opts Options) (*models.RunSummary, error) {
	plan := runCtx.Plan

	if err := dag.Validate(plan); err != nil {
		return nil, err
	}

	start := time.Now()

	if err := b.Initialize(ctx, runCtx); err != nil {
		return nil, models.NewBackendUnavailableError("backend", err)
	}
	defer b.Cleanup(ctx)

	if err := b.SubmitTasks(ctx, plan); err != nil {
		return nil, models.NewBackendUnavailableError("backend", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.WaitCeiling)
	defer cancel()

	waitErr := b.WaitForCompletion(waitCtx, plan.ExecutorBudget)

	states, err := collectStates(ctx, b, plan)
	if err != nil {
		return nil, err
	}

	if waitCtx.Err() == context.DeadlineExceeded {
		markTimedOutTasksTerminal(ctx, b, plan, states)
	}

	propagateSkips(plan, states)

	results, err := collectResults(ctx, b)
	if err != nil {
		return nil, err
	}

	summary := models.NewRunSummary(states, results, time.Since(start))

	if waitErr != nil && waitCtx.Err() != context.DeadlineExceeded {
		return summary, models.NewBackendUnavailableError("backend", waitErr)
	}

	return summary, nil
}

func collectStates(ctx context.Context, b backend.Backend, plan *models.Plan) (map[string]models.TaskState, error) {
	completed, err := b.GetCompletedTasks(ctx)
	if err != nil {
		return nil, err
	}
	inProgress, err := b.GetInProgressTasks(ctx)
	if err != nil {
		return nil, err
	}

	states := make(map[string]models.TaskState, len(plan.Tasks))
	for _, t := range plan.Tasks {
		switch {
		case completed[t.ID]:
			states[t.ID] = models.StateCompleted
		case inProgress[t.ID]:
			states[t.ID] = models.StateInProgress
		default:
			st, err := b.GetTaskStatus(ctx, t.ID)
			if err != nil {
				states[t.ID] = models.StatePending
				continue
			}
			states[t.ID] = st
		}
	}
	return states, nil
}

func markTimedOutTasksTerminal(ctx context.Context, b backend.Backend, plan *models.Plan, states map[string]models.TaskState) {
	for _, t := range plan.Tasks {
		if !states[t.ID].IsTerminal() {
			_ = b.MarkTaskFailed(ctx, t.ID, models.NewTimeoutError("", "", ""))
			states[t.ID] = models.StateTerminalFailed
		}
	}
}

// propagateSkips marks every task whose transitive dependencies include a
// TERMINAL_FAILED task as SKIPPED, since it can never become runnable.
func propagateSkips(plan *models.Plan, states map[string]models.TaskState) {
	changed := true
	for changed {
		changed = false
		for _, t := range plan.Tasks {
			if states[t.ID].IsTerminal() {
				continue
			}
			for _, dep := range plan.Dependencies[t.ID] {
				if states[dep] == models.StateTerminalFailed || states[dep] == models.StateSkipped {
					states[t.ID] = models.StateSkipped
					changed = true
					break
				}
			}
		}
	}
}

func collectResults(ctx context.Context, b backend.Backend) (map[string]models.Result, error) {
	results, err := b.GetResults(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Result, len(results))
	for _, r := range results {
		out[r.TaskID] = r
	}
	return out, nil
}
