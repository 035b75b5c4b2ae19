// Package memory implements the in-memory execution backend: a pool of
// goroutine workers that dynamically claim ready tasks from a shared queue
// (work-stealing — any free worker may claim any ready task; there is no
// static wave-based pre-assignment).
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/scheduler"
)

// Executor is the opaque worker body a task is handed to. Its contract and
// implementation are out of scope here; see internal/worker for a minimal
// reference implementation.
type Executor interface {
	Execute(ctx context.Context, task models.Task, runCtx *models.RunContext) (models.Result, error)
}

// Backend is the in-memory execution backend (C4). Two independent locks
// guard task-claim state and result state respectively, so that neither is
// ever held across the opaque, potentially slow Executor.Execute call.
type Backend struct {
	Executor Executor
	Retry    scheduler.RetryPolicy

	// IdleSleep is how long a worker sleeps when it finds nothing pickable
	// and the run is not yet complete. Default 500ms, matching the
	// documented pickup-loop behavior.
	IdleSleep time.Duration
	// StartStagger staggers worker goroutine starts. Default 200ms.
	StartStagger time.Duration

	stateMu    sync.Mutex
	resultsMu  sync.Mutex
	plan       *models.Plan
	runCtx     *models.RunContext
	states     map[string]models.TaskState
	results    map[string]models.Result
	retryMgr   *scheduler.RetryManager
}

func New(executor Executor, retry scheduler.RetryPolicy) *Backend {
	return &Backend{
		Executor:     executor,
		Retry:        retry,
		IdleSleep:    500 * time.Millisecond,
		StartStagger: 200 * time.Millisecond,
	}
}

func (b *Backend) Initialize(ctx context.Context, runCtx *models.RunContext) error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.runCtx = runCtx
	b.states = make(map[string]models.TaskState)
	b.retryMgr = scheduler.NewRetryManager(b.Retry)

	b.resultsMu.Lock()
	b.results = make(map[string]models.Result)
	b.resultsMu.Unlock()

	return nil
}

func (b *Backend) SubmitTasks(ctx context.Context, plan *models.Plan) error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.plan = plan
	for _, t := range plan.Tasks {
		b.states[t.ID] = models.StatePending
	}
	return nil
}

// WaitForCompletion starts min(budget, len(tasks)) worker goroutines, each
// running the pickup loop, staggered by StartStagger, and waits for all of
// them to exit. A worker exits once it finds nothing pickable AND the
// total of completed+terminally-failed tasks covers every task — i.e. the
// run is over, not merely that this worker is momentarily idle.
func (b *Backend) WaitForCompletion(ctx context.Context, budget int) error {
	b.stateMu.Lock()
	total := len(b.plan.Tasks)
	b.stateMu.Unlock()

	if total == 0 {
		return nil
	}

	numWorkers := total
	if budget > 0 && budget < total {
		numWorkers = budget
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		workerID := i
		stagger := time.Duration(workerID) * b.StartStagger
		g.Go(func() error {
			select {
			case <-time.After(stagger):
			case <-gctx.Done():
				return gctx.Err()
			}
			return b.runWorker(gctx, workerID)
		})
	}

	return g.Wait()
}

func (b *Backend) runWorker(ctx context.Context, workerID int) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		taskID, task, found := b.claimNextReady(ctx)
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

		result, err := b.Executor.Execute(ctx, task, b.runCtx)
		if err != nil {
			b.handleFailure(taskID, err)
			continue
		}
		b.handleSuccess(taskID, result)
	}
}

// claimNextReady scans tasks in plan (insertion) order under the state
// lock and claims the first one whose dependencies are all completed and
// which is not already claimed. This single shared scan, rather than a
// per-worker partition, is what makes the pool work-stealing: any worker
// may claim any ready task.
func (b *Backend) claimNextReady(ctx context.Context) (string, models.Task, bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

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

func (b *Backend) handleSuccess(taskID string, result models.Result) {
	b.resultsMu.Lock()
	b.results[taskID] = result
	b.resultsMu.Unlock()

	b.stateMu.Lock()
	b.states[taskID] = models.StateCompleted
	b.stateMu.Unlock()
}

func (b *Backend) handleFailure(taskID string, cause error) {
	if b.retryMgr.ShouldRetry(taskID) {
		b.retryMgr.RecordAttempt(taskID)
		delay := b.retryMgr.GetDelay(taskID)
		time.Sleep(delay)

		b.stateMu.Lock()
		b.states[taskID] = models.StatePending
		b.stateMu.Unlock()
		return
	}

	b.resultsMu.Lock()
	b.results[taskID] = models.Result{TaskID: taskID, Status: models.ResultFailed, Error: cause.Error()}
	b.resultsMu.Unlock()

	b.stateMu.Lock()
	b.states[taskID] = models.StateTerminalFailed
	b.propagateSkipsLocked()
	b.stateMu.Unlock()
}

// propagateSkipsLocked marks every task whose transitive dependencies
// include a terminally-failed or skipped task as SKIPPED, since it can
// never become runnable. Must be called with stateMu held. This keeps the
// pickup loop's completion condition (every task terminal) reachable even
// when a permanently-failed task has dependents that will never run.
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
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	done := 0
	for _, t := range b.plan.Tasks {
		if b.states[t.ID].IsTerminal() {
			done++
		}
	}
	return done >= len(b.plan.Tasks)
}

func (b *Backend) GetTaskStatus(ctx context.Context, taskID string) (models.TaskState, error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.states[taskID], nil
}

func (b *Backend) GetResults(ctx context.Context) ([]models.Result, error) {
	b.resultsMu.Lock()
	defer b.resultsMu.Unlock()
	out := make([]models.Result, 0, len(b.results))
	for _, r := range b.results {
		out = append(out, r)
	}
	return out, nil
}

func (b *Backend) MarkTaskComplete(ctx context.Context, taskID string, result models.Result) error {
	b.handleSuccess(taskID, result)
	return nil
}

func (b *Backend) MarkTaskFailed(ctx context.Context, taskID string, cause error) error {
	b.stateMu.Lock()
	b.states[taskID] = models.StateTerminalFailed
	b.propagateSkipsLocked()
	b.stateMu.Unlock()
	b.resultsMu.Lock()
	b.results[taskID] = models.Result{TaskID: taskID, Status: models.ResultFailed, Error: cause.Error()}
	b.resultsMu.Unlock()
	return nil
}

func (b *Backend) CanExecuteTask(ctx context.Context, taskID string) (bool, error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.depsSatisfiedLocked(taskID), nil
}

func (b *Backend) GetCompletedTasks(ctx context.Context) (map[string]bool, error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	out := make(map[string]bool)
	for id, st := range b.states {
		if st == models.StateCompleted {
			out[id] = true
		}
	}
	return out, nil
}

func (b *Backend) GetInProgressTasks(ctx context.Context) (map[string]bool, error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
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
