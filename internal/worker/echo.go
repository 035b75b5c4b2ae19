// Package worker provides the worker-body contract a backend executes
// tasks through, plus a minimal reference implementation.
//
// The real worker body — invoking an opaque external agent per task, the
// way the teacher's internal/claude.Invoker shells out to a CLI agent — is
// explicitly out of scope; EchoExecutor exists so backends and the CLI
// have something concrete to run.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/parallelorc/internal/models"
)

// Executor runs a single task's work and reports the outcome. Backends
// call Execute once per attempt; retries are the backend's concern, not
// the executor's.
type Executor interface {
	Execute(ctx context.Context, task models.Task, runCtx *models.RunContext) (models.Result, error)
}

// EchoExecutor writes a marker file under the task's output directory,
// optionally sleeps to simulate work, and returns a synthetic completed
// result. It never fails on its own; FailTaskIDs lets tests force specific
// tasks to return an error.
type EchoExecutor struct {
	// SimulatedWork is slept before returning, to exercise concurrency
	// limits and timing-sensitive scheduler behavior in tests.
	SimulatedWork time.Duration

	// FailTaskIDs marks task IDs that should return an error instead of
	// completing, for exercising retry/failure paths.
	FailTaskIDs map[string]bool
}

func NewEchoExecutor() *EchoExecutor {
	return &EchoExecutor{}
}

func (e *EchoExecutor) Execute(ctx context.Context, task models.Task, runCtx *models.RunContext) (models.Result, error) {
	start := time.Now()

	if e.SimulatedWork > 0 {
		select {
		case <-time.After(e.SimulatedWork):
		case <-ctx.Done():
			return models.Result{}, ctx.Err()
		}
	}

	if e.FailTaskIDs[task.ID] {
		return models.Result{}, fmt.Errorf("task %s: simulated failure", task.ID)
	}

	var outputFiles []string
	if runCtx != nil && runCtx.OutputDir != "" {
		taskDir := filepath.Join(runCtx.OutputDir, task.ID)
		if err := os.MkdirAll(taskDir, 0755); err != nil {
			return models.Result{}, fmt.Errorf("create output dir for task %s: %w", task.ID, err)
		}
		markerPath := filepath.Join(taskDir, "done.marker")
		if err := os.WriteFile(markerPath, []byte(fmt.Sprintf("task %s completed at %s\n", task.ID, time.Now().Format(time.RFC3339))), 0644); err != nil {
			return models.Result{}, fmt.Errorf("write marker for task %s: %w", task.ID, err)
		}
		outputFiles = []string{markerPath}
	}

	return models.Result{
		TaskID:        task.ID,
		Status:        models.ResultCompleted,
		ExecutionTime: time.Since(start),
		OutputFiles:   outputFiles,
	}, nil
}
