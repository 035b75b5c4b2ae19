package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/harrison/parallelorc/internal/backend/durable"
	"github.com/harrison/parallelorc/internal/filelock"
	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/scheduler"
)

// CommandFunc builds the shell command a generated job script should run
// for a task. The worker body itself is out of scope; this lets the caller
// supply whatever invocation wraps it (e.g. a CLI binary with task/run
// flags serialized to disk).
type CommandFunc func(task models.Task, runCtx *models.RunContext) string

// Backend is the local HPC-cluster durable backend. State lives under
// <output_dir>/.cluster_state/ following the shared durable.StateLayout,
// guarded by advisory file locks (shared for reads, exclusive for writes)
// and atomic temp-file-rename writes.
type Backend struct {
	Scheduler    ExternalJobScheduler
	Command      CommandFunc
	PollInterval time.Duration
	WaitCeiling  time.Duration
	Retry        scheduler.RetryPolicy

	// WorkDir overrides the default <output_dir>/.cluster_state state
	// directory when non-empty.
	WorkDir string

	layout   durable.StateLayout
	runCtx   *models.RunContext
	retryMgr *scheduler.RetryManager
	jobIDs   map[string]string
}

func New(sched ExternalJobScheduler, command CommandFunc, retry scheduler.RetryPolicy) *Backend {
	return &Backend{
		Scheduler:    sched,
		Command:      command,
		PollInterval: 10 * time.Second,
		WaitCeiling:  2 * time.Hour,
		Retry:        retry,
	}
}

func (b *Backend) Initialize(ctx context.Context, runCtx *models.RunContext) error {
	b.runCtx = runCtx
	b.retryMgr = scheduler.NewRetryManager(b.Retry)
	b.jobIDs = make(map[string]string)
	stateDir := b.WorkDir
	if stateDir == "" {
		stateDir = filepath.Join(runCtx.OutputDir, ".cluster_state")
	}
	b.layout = durable.NewStateLayout(stateDir)

	for _, dir := range b.layout.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state dir %s: %w", dir, err)
		}
	}

	marker := fmt.Sprintf(`{"run_id":%q}`, runCtx.RunID)
	if err := filelock.AtomicWrite(b.layout.MarkerFile(), []byte(marker)); err != nil {
		return err
	}

	tasksState := durable.NewTasksFileState()
	if err := b.writeTasksState(tasksState); err != nil {
		return err
	}
	jobsState := durable.NewJobsFileState(runCtx.RunID)
	return b.writeJobsState(jobsState)
}

func (b *Backend) SubmitTasks(ctx context.Context, plan *models.Plan) error {
	tasksState, err := b.readTasksState()
	if err != nil {
		return err
	}
	for _, t := range plan.Tasks {
		def := durable.TaskDefinition{Task: t, Plan: plan, Requirements: b.runCtx.Requirements}
		data, err := def.Marshal()
		if err != nil {
			return models.NewSubmitFailedError(t.ID, err)
		}
		if err := filelock.AtomicWrite(b.layout.TaskDefinitionFile(t.ID), data); err != nil {
			return models.NewSubmitFailedError(t.ID, err)
		}
		tasksState.SetStatus(t.ID, models.StatePending)
	}
	return b.writeTasksState(tasksState)
}

// WaitForCompletion submits tasks in topological waves (each task's job
// script encodes no native dependency expression here, since the local
// stand-in scheduler has none — waves are what enforce ordering), then
// polls every PollInterval until every task reaches a terminal state or
// WaitCeiling elapses.
func (b *Backend) WaitForCompletion(ctx context.Context, budget int) error {
	plan := b.runCtx.Plan

	jobIDs, err := durable.SubmitInWaves(plan, func(task models.Task, depJobIDs []string) (string, error) {
		return b.submitOne(ctx, task, depJobIDs)
	})
	b.jobIDs = jobIDs
	if err != nil {
		return err
	}
	if err := b.writeJobIDs(); err != nil {
		return err
	}

	return b.monitor(ctx, plan)
}

func (b *Backend) submitOne(ctx context.Context, task models.Task, depJobIDs []string) (string, error) {
	scriptPath := b.layout.ScriptFile(task.ID)
	command := b.Command(task, b.runCtx)
	if err := generateJobScript(scriptPath, command); err != nil {
		return "", err
	}

	jobID, err := b.Scheduler.Submit(ctx, scriptPath, depJobIDs)
	if err != nil {
		b.markFailedLocal(task.ID, models.NewSubmitFailedError(task.ID, err))
		return "", err
	}

	b.setStatus(task.ID, models.StateInProgress)
	return jobID, nil
}

func (b *Backend) monitor(ctx context.Context, plan *models.Plan) error {
	limiter := rate.NewLimiter(rate.Every(b.PollInterval), 1)
	deadline := time.Now().Add(b.WaitCeiling)

	for {
		if b.allTerminal(plan) {
			return nil
		}
		if time.Now().After(deadline) {
			return nil // caller (scheduler) applies the timeout policy
		}

		for taskID, jobID := range b.jobIDs {
			state, err := b.Scheduler.Describe(ctx, jobID)
			if err != nil {
				continue
			}
			switch state {
			case JobCompleted:
				b.collectResult(taskID)
			case JobFailed:
				b.handleJobFailure(ctx, taskID)
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
	}
}

func (b *Backend) collectResult(taskID string) {
	data, err := filelock.ReadWithLock(b.layout.ResultFile(taskID))
	if err != nil || data == nil {
		b.handleJobFailure(context.Background(), taskID)
		return
	}
	var result models.Result
	if err := json.Unmarshal(data, &result); err != nil || result.Status != models.ResultCompleted {
		b.handleJobFailure(context.Background(), taskID)
		return
	}
	b.setStatus(taskID, models.StateCompleted)
}

func (b *Backend) handleJobFailure(ctx context.Context, taskID string) {
	if b.retryMgr.ShouldRetry(taskID) {
		b.retryMgr.RecordAttempt(taskID)
		delay := b.retryMgr.GetDelay(taskID)
		time.Sleep(delay)

		task, ok := b.runCtx.Plan.TaskByID(taskID)
		if !ok {
			return
		}

		var depJobIDs []string
		for _, dep := range b.runCtx.Plan.Dependencies[taskID] {
			if jid, ok := b.jobIDs[dep]; ok {
				depJobIDs = append(depJobIDs, jid)
			}
		}

		jobID, err := b.submitOne(ctx, task, depJobIDs)
		if err == nil {
			b.jobIDs[taskID] = jobID
			_ = b.writeJobIDs()
		}
		return
	}

	b.markFailedLocal(taskID, models.NewArtifactMissingError(taskID))
}

func (b *Backend) markFailedLocal(taskID string, cause error) {
	b.setStatus(taskID, models.StateTerminalFailed)
	result := models.Result{TaskID: taskID, Status: models.ResultFailed, Error: cause.Error()}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = filelock.AtomicWrite(b.layout.ResultFile(taskID), data)
}

func (b *Backend) allTerminal(plan *models.Plan) bool {
	state, err := b.readTasksState()
	if err != nil {
		return false
	}
	for _, t := range plan.Tasks {
		if !state.Tasks[t.ID].IsTerminal() {
			return false
		}
	}
	return true
}

func (b *Backend) setStatus(taskID string, status models.TaskState) {
	state, err := b.readTasksState()
	if err != nil {
		return
	}
	state.SetStatus(taskID, status)
	_ = b.writeTasksState(state)
}

func (b *Backend) readTasksState() (*durable.TasksFileState, error) {
	data, err := filelock.ReadWithLock(b.layout.TasksFile())
	if err != nil {
		return nil, models.NewStateCorruptedError(b.layout.TasksFile(), err)
	}
	return durable.UnmarshalTasksFileState(data)
}

func (b *Backend) writeTasksState(state *durable.TasksFileState) error {
	data, err := state.Marshal()
	if err != nil {
		return err
	}
	return filelock.WriteWithLock(b.layout.TasksFile(), data)
}

func (b *Backend) readJobsState() (*durable.JobsFileState, error) {
	data, err := filelock.ReadWithLock(b.layout.JobsFile())
	if err != nil {
		return nil, models.NewStateCorruptedError(b.layout.JobsFile(), err)
	}
	return durable.UnmarshalJobsFileState(data)
}

func (b *Backend) writeJobsState(state *durable.JobsFileState) error {
	data, err := state.Marshal()
	if err != nil {
		return err
	}
	return filelock.WriteWithLock(b.layout.JobsFile(), data)
}

func (b *Backend) writeJobIDs() error {
	state, err := b.readJobsState()
	if err != nil {
		state = durable.NewJobsFileState(b.runCtx.RunID)
	}
	for k, v := range b.jobIDs {
		state.Jobs[k] = v
	}
	return b.writeJobsState(state)
}

func (b *Backend) GetTaskStatus(ctx context.Context, taskID string) (models.TaskState, error) {
	state, err := b.readTasksState()
	if err != nil {
		return "", err
	}
	return state.Tasks[taskID], nil
}

func (b *Backend) GetResults(ctx context.Context) ([]models.Result, error) {
	entries, err := os.ReadDir(b.layout.ResultsDir())
	if err != nil {
		return nil, models.NewStateCorruptedError(b.layout.ResultsDir(), err)
	}
	var results []models.Result
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		taskID := trimJSONExt(e.Name())
		data, err := filelock.ReadWithLock(b.layout.ResultFile(taskID))
		if err != nil || data == nil {
			continue
		}
		var result models.Result
		if err := json.Unmarshal(data, &result); err == nil {
			results = append(results, result)
		}
	}
	return results, nil
}

func trimJSONExt(name string) string {
	if len(name) > 5 && name[len(name)-5:] == ".json" {
		return name[:len(name)-5]
	}
	return name
}

func (b *Backend) MarkTaskComplete(ctx context.Context, taskID string, result models.Result) error {
	result.TaskID = taskID
	result.Status = models.ResultCompleted
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := filelock.AtomicWrite(b.layout.ResultFile(taskID), data); err != nil {
		return err
	}
	b.setStatus(taskID, models.StateCompleted)
	return nil
}

func (b *Backend) MarkTaskFailed(ctx context.Context, taskID string, cause error) error {
	b.markFailedLocal(taskID, cause)
	return nil
}

func (b *Backend) CanExecuteTask(ctx context.Context, taskID string) (bool, error) {
	state, err := b.readTasksState()
	if err != nil {
		return false, err
	}
	for _, dep := range b.runCtx.Plan.Dependencies[taskID] {
		if state.Tasks[dep] != models.StateCompleted {
			return false, nil
		}
	}
	return true, nil
}

func (b *Backend) GetCompletedTasks(ctx context.Context) (map[string]bool, error) {
	state, err := b.readTasksState()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(state.Completed))
	for _, id := range state.Completed {
		out[id] = true
	}
	return out, nil
}

func (b *Backend) GetInProgressTasks(ctx context.Context) (map[string]bool, error) {
	state, err := b.readTasksState()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(state.InProgress))
	for _, id := range state.InProgress {
		out[id] = true
	}
	return out, nil
}

func (b *Backend) Cleanup(ctx context.Context) error {
	return nil
}
