// Package container implements the local-containers execution backend: a
// hybrid backend that plans and schedules in-process like the in-memory
// backend, but runs each task's worker body inside a container rather than
// a goroutine. A fixed pool of N = min(budget, len(tasks)) container
// workers pulls tasks from a shared dependency-gated queue as they become
// ready, the same work-stealing pickup loop the in-memory backend runs,
// except the "execute" step shells out to `docker run` instead of calling
// an in-process Executor.
package container

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/scheduler"
)

// Config holds the container-specific options spec.md's CLI surface lists.
type Config struct {
	Image   string
	Network string
}

// Backend is the local-containers durable-ish backend (C5, container
// variant). No Go Docker client exists among the libraries this codebase
// draws on, so containers are launched via `docker run` through os/exec,
// the same subprocess-invocation idiom used elsewhere in this codebase for
// shelling out to external tools (context-scoped command, captured
// combined output, wrapped errors).
type Backend struct {
	Config    Config
	Retry     scheduler.RetryPolicy
	IdleSleep time.Duration

	mu       sync.Mutex
	plan     *models.Plan
	runCtx   *models.RunContext
	states   map[string]models.TaskState
	results  map[string]models.Result
	retryMgr *scheduler.RetryManager
}

func New(cfg Config, retry scheduler.RetryPolicy) *Backend {
	return &Backend{Config: cfg, Retry: retry, IdleSleep: 500 * time.Millisecond}
}

func (b *Backend) Initialize(ctx context.Context, runCtx *models.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runCtx = runCtx
	b.states = make(map[string]models.TaskState)
	b.results = make(map[string]models.Result)
	b.retryMgr = scheduler.NewRetryManager(b.Retry)
	return nil
}

func (b *Backend) SubmitTasks(ctx context.Context, plan *models.Plan) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plan = plan
	for _, t := range plan.Tasks {
		b.states[t.ID] = models.StatePending
	}
	return nil
}

// WaitForCompletion starts a fixed pool of min(budget, len(tasks))
// container workers, each running the dependency-gated pickup loop
// exactly like the in-memory backend's pickup loop, except the "execute"
// step shells out to `docker run` instead of calling an in-process
// Executor.
func (b *Backend) WaitForCompletion(ctx context.Context, budget int) error {
	b.mu.Lock()
	total := len(b.plan.Tasks)
	b.mu.Unlock()
	if total == 0 {
		return nil
	}

	numWorkers := total
	if budget > 0 && budget < total {
		numWorkers = budget
	}

	var wg sync.WaitGroup
	errCh := make(chan error, numWorkers)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			if err := b.runWorker(ctx, workerID); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (b *Backend) runWorker(ctx context.Context, workerID int) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		taskID, task, found := b.claimNextReady()
		if !found {
			if b.isRunComplete() {
				return nil
			}
			select {
			case <-time.After(b.IdleSleep):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := b.runContainer(ctx, task); err != nil {
			b.handleFailure(taskID, err)
			continue
		}
		b.handleSuccess(taskID)
	}
}

func (b *Backend) runContainer(ctx context.Context, task models.Task) error {
	args := []string{"run", "--rm"}
	if b.Config.Network != "" {
		args = append(args, "--network", b.Config.Network)
	}
	args = append(args, "-e", "TASK_ID="+task.ID, "-e", "RUN_ID="+b.runCtx.RunID)
	args = append(args, b.Config.Image)

	cmd := exec.CommandContext(ctx, "docker", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("container run for task %s failed: %w: %s", task.ID, err, out.String())
	}
	return nil
}

func (b *Backend) claimNextReady() (string, models.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.plan.Tasks {
		st := b.states[t.ID]
		if st != models.StatePending && st != models.StateFailed {
			continue
		}
		if !b.depsSatisfiedLocked(t.ID) {
			continue
		}
		b.states[t.ID] = models.StateInProgress
		return t.ID, t, true
	}
	return "", models.Task{}, false
}

func (b *Backend) depsSatisfiedLocked(taskID string) bool {
	for _, dep := range b.plan.Dependencies[taskID] {
		if b.states[dep] != models.StateCompleted {
			return false
		}
	}
	return true
}

func (b *Backend) handleSuccess(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[taskID] = models.StateCompleted
	b.results[taskID] = models.Result{TaskID: taskID, Status: models.ResultCompleted}
}

func (b *Backend) handleFailure(taskID string, cause error) {
	if b.retryMgr.ShouldRetry(taskID) {
		b.retryMgr.RecordAttempt(taskID)
		time.Sleep(b.retryMgr.GetDelay(taskID))
		b.mu.Lock()
		b.states[taskID] = models.StatePending
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[taskID] = models.StateTerminalFailed
	b.results[taskID] = models.Result{TaskID: taskID, Status: models.ResultFailed, Error: cause.Error()}
	b.propagateSkipsLocked()
}

func (b *Backend) propagateSkipsLocked() {
	changed := true
	for changed {
		changed = false
		for _, t := range b.plan.Tasks {
			if b.states[t.ID].IsTerminal() {
				continue
			}
			for _, dep := range b.plan.Dependencies[t.ID] {
				if b.states[dep] == models.StateTerminalFailed || b.states[dep] == models.StateSkipped {
					b.states[t.ID] = models.StateSkipped
					changed = true
					break
				}
			}
		}
	}
}

func (b *Backend) isRunComplete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	done := 0
	for _, t := range b.plan.Tasks {
		if b.states[t.ID].IsTerminal() {
			done++
		}
	}
	return done >= len(b.plan.Tasks)
}

func (b *Backend) GetTaskStatus(ctx context.Context, taskID string) (models.TaskState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[taskID], nil
}

func (b *Backend) GetResults(ctx context.Context) ([]models.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Result, 0, len(b.results))
	for _, r := range b.results {
		out = append(out, r)
	}
	return out, nil
}

func (b *Backend) MarkTaskComplete(ctx context.Context, taskID string, result models.Result) error {
	b.mu.Lock()
	b.states[taskID] = models.StateCompleted
	b.results[taskID] = result
	b.mu.Unlock()
	return nil
}

func (b *Backend) MarkTaskFailed(ctx context.Context, taskID string, cause error) error {
	b.mu.Lock()
	b.states[taskID] = models.StateTerminalFailed
	b.results[taskID] = models.Result{TaskID: taskID, Status: models.ResultFailed, Error: cause.Error()}
	b.propagateSkipsLocked()
	b.mu.Unlock()
	return nil
}

func (b *Backend) CanExecuteTask(ctx context.Context, taskID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depsSatisfiedLocked(taskID), nil
}

func (b *Backend) GetCompletedTasks(ctx context.Context) (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool)
	for id, st := range b.states {
		if st == models.StateCompleted {
			out[id] = true
		}
	}
	return out, nil
}

func (b *Backend) GetInProgressTasks(ctx context.Context) (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool)
	for id, st := range b.states {
		if st == models.StateInProgress {
			out[id] = true
		}
	}
	return out, nil
}

func (b *Backend) Cleanup(ctx context.Context) error {
	return nil
}
