// Package backend defines the contract every execution backend must
// satisfy, independent of whether work runs in-process, on a local HPC
// cluster, in a managed cloud batch service, or in containers.
package backend

import (
	"context"

	"github.com/harrison/parallelorc/internal/models"
)

// Backend is the capability set the scheduler core drives a run through.
// Implementations own their own concurrency and durability model; the
// scheduler only ever calls through this interface.
type Backend interface {
	// Initialize prepares the backend for a new run (clears/creates state).
	Initialize(ctx context.Context, runCtx *models.RunContext) error

	// SubmitTasks registers the plan's tasks with the backend. For the
	// in-memory backend this just stores the task list; for durable
	// backends this writes task definitions to durable state.
	SubmitTasks(ctx context.Context, plan *models.Plan) error

	// WaitForCompletion runs (or polls) until every task has reached a
	// terminal state or the run's wall-clock ceiling is exceeded, with at
	// most budget tasks in progress at once (in-memory and container
	// backends; the cluster and cloud-batch backends do not cap by budget).
	WaitForCompletion(ctx context.Context, budget int) error

	GetTaskStatus(ctx context.Context, taskID string) (models.TaskState, error)
	GetResults(ctx context.Context) ([]models.Result, error)

	MarkTaskComplete(ctx context.Context, taskID string, result models.Result) error
	MarkTaskFailed(ctx context.Context, taskID string, cause error) error

	// CanExecuteTask reports whether every dependency of the task is in
	// the completed set.
	CanExecuteTask(ctx context.Context, taskID string) (bool, error)

	GetCompletedTasks(ctx context.Context) (map[string]bool, error)
	GetInProgressTasks(ctx context.Context) (map[string]bool, error)

	// Cleanup releases any resources the backend holds open. Safe to call
	// on a backend that was never initialized.
	Cleanup(ctx context.Context) error
}
