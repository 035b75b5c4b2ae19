package cloudbatch

import (
	"encoding/json"
	"strings"
	"time"

	"context"

	"github.com/harrison/parallelorc/internal/backend/durable"
	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/objectstore"
	"github.com/harrison/parallelorc/internal/scheduler"
)

// Config holds the managed-batch-specific options spec.md's CLI surface
// lists for the cloud-batch backend.
type Config struct {
	Bucket        string
	Prefix        string
	Region        string
	JobQueue      string
	JobDefinition string
	VCPUs         int
	Memory        int
	Timeout       int // seconds
}

// Backend is the managed-cloud-batch durable backend (C5, cloud-batch
// variant). State lives under s3://bucket/prefix/<run_id>/ in the shared
// durable.StateLayout (tasks.json, jobs.json, task_definitions/<id>.json,
// results/<id>.json), single-writer-per-key, polled via DescribeJobs
// rather than file locks since there is no shared filesystem to lock.
type Backend struct {
	Store        objectstore.Store
	Jobs         BatchJobService
	Config       Config
	PollInterval time.Duration
	WaitCeiling  time.Duration
	Retry        scheduler.RetryPolicy

	runCtx   *models.RunContext
	layout   durable.StateLayout
	retryMgr *scheduler.RetryManager
	jobIDs   map[string]string
}

func New(store objectstore.Store, jobs BatchJobService, cfg Config, retry scheduler.RetryPolicy) *Backend {
	return &Backend{
		Store:        store,
		Jobs:         jobs,
		Config:       cfg,
		PollInterval: 15 * time.Second,
		WaitCeiling:  2 * time.Hour,
		Retry:        retry,
	}
}

func (b *Backend) Initialize(ctx context.Context, runCtx *models.RunContext) error {
	b.runCtx = runCtx
	b.retryMgr = scheduler.NewRetryManager(b.Retry)
	b.jobIDs = make(map[string]string)
	base := strings.TrimSuffix(b.Config.Prefix, "/") + "/" + runCtx.RunID
	b.layout = durable.NewStateLayout(base)

	if err := b.putJSON(b.layout.TasksFile(), durable.NewTasksFileState()); err != nil {
		return err
	}
	return b.putJSON(b.layout.JobsFile(), durable.NewJobsFileState(runCtx.RunID))
}

func (b *Backend) SubmitTasks(ctx context.Context, plan *models.Plan) error {
	state, err := b.readTasksState(ctx)
	if err != nil {
		return err
	}
	for _, t := range plan.Tasks {
		def, _ := json.Marshal(t)
		if err := b.Store.Put(ctx, b.layout.TaskDefinitionFile(t.ID), def); err != nil {
			return models.NewSubmitFailedError(t.ID, err)
		}
		state.SetStatus(t.ID, models.StatePending)
	}
	return b.putJSON(b.layout.TasksFile(), state)
}

// WaitForCompletion submits the plan's tasks in topological waves,
// translating each task's full predecessor set into one
// {"jobId": id, "type": "SEQUENTIAL"} entry per predecessor (AWS Batch
// treats this as an AND over all listed dependencies), then polls
// DescribeJobs until every task reaches a terminal state or the wait
// ceiling elapses.
func (b *Backend) WaitForCompletion(ctx context.Context, budget int) error {
	plan := b.runCtx.Plan

	jobIDs, err := durable.SubmitInWaves(plan, func(task models.Task, depJobIDs []string) (string, error) {
		return b.submitOne(ctx, task, depJobIDs)
	})
	b.jobIDs = jobIDs
	if err != nil {
		return err
	}
	if err := b.writeJobIDs(ctx); err != nil {
		return err
	}

	return b.monitor(ctx, plan)
}

func (b *Backend) submitOne(ctx context.Context, task models.Task, depJobIDs []string) (string, error) {
	var deps []JobDependency
	for _, jid := range depJobIDs {
		deps = append(deps, JobDependency{JobID: jid, Type: "SEQUENTIAL"})
	}

	overrides := map[string]string{
		"TASK_ID": task.ID,
		"RUN_ID":  b.runCtx.RunID,
	}

	jobID, err := b.Jobs.SubmitJob(ctx, "task-"+task.ID, b.Config.JobQueue, b.Config.JobDefinition, deps, overrides, b.Config.Timeout)
	if err != nil {
		b.markFailedLocal(ctx, task.ID, models.NewSubmitFailedError(task.ID, err))
		return "", err
	}
	b.setStatus(ctx, task.ID, models.StateInProgress)
	return jobID, nil
}

func (b *Backend) monitor(ctx context.Context, plan *models.Plan) error {
	deadline := time.Now().Add(b.WaitCeiling)

	for {
		if b.allTerminal(ctx, plan) {
			return nil
		}
		if time.Now().After(deadline) {
			return nil
		}

		var ids []string
		for _, jid := range b.jobIDs {
			ids = append(ids, jid)
		}
		descs, err := b.Jobs.DescribeJobs(ctx, ids)
		if err == nil {
			byJobID := make(map[string]JobDescription, len(descs))
			for _, d := range descs {
				byJobID[d.JobID] = d
			}
			for taskID, jobID := range b.jobIDs {
				desc, ok := byJobID[jobID]
				if !ok || !desc.Status.IsTerminal() {
					continue
				}
				if desc.Status == StatusSucceeded {
					b.collectResult(ctx, taskID)
				} else {
					b.handleJobFailure(ctx, taskID)
				}
			}
		}

		select {
		case <-time.After(b.PollInterval):
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Backend) collectResult(ctx context.Context, taskID string) {
	data, err := b.Store.Get(ctx, b.layout.ResultFile(taskID))
	if err != nil || data == nil {
		// Missing result file is treated as a retryable ExecutionFailed
		// variant (ArtifactMissingError), not silently ignored.
		b.handleJobFailure(ctx, taskID)
		return
	}
	b.setStatus(ctx, taskID, models.StateCompleted)
}

func (b *Backend) handleJobFailure(ctx context.Context, taskID string) {
	if b.retryMgr.ShouldRetry(taskID) {
		b.retryMgr.RecordAttempt(taskID)
		time.Sleep(b.retryMgr.GetDelay(taskID))

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
			_ = b.writeJobIDs(ctx)
		}
		return
	}

	b.markFailedLocal(ctx, taskID, models.NewArtifactMissingError(taskID))
}

func (b *Backend) markFailedLocal(ctx context.Context, taskID string, cause error) {
	b.setStatus(ctx, taskID, models.StateTerminalFailed)
	result := models.Result{TaskID: taskID, Status: models.ResultFailed, Error: cause.Error()}
	data, _ := json.Marshal(result)
	_ = b.Store.Put(ctx, b.layout.ResultFile(taskID), data)
}

func (b *Backend) allTerminal(ctx context.Context, plan *models.Plan) bool {
	state, err := b.readTasksState(ctx)
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

func (b *Backend) setStatus(ctx context.Context, taskID string, status models.TaskState) {
	state, err := b.readTasksState(ctx)
	if err != nil {
		return
	}
	state.SetStatus(taskID, status)
	_ = b.putJSON(b.layout.TasksFile(), state)
}

func (b *Backend) readTasksState(ctx context.Context) (*durable.TasksFileState, error) {
	data, err := b.Store.Get(ctx, b.layout.TasksFile())
	if err != nil {
		return durable.NewTasksFileState(), nil
	}
	return durable.UnmarshalTasksFileState(data)
}

func (b *Backend) writeJobIDs(ctx context.Context) error {
	state := durable.NewJobsFileState(b.runCtx.RunID)
	for k, v := range b.jobIDs {
		state.Jobs[k] = v
	}
	return b.putJSON(b.layout.JobsFile(), state)
}

func (b *Backend) putJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Store.Put(context.Background(), key, data)
}

func (b *Backend) GetTaskStatus(ctx context.Context, taskID string) (models.TaskState, error) {
	state, err := b.readTasksState(ctx)
	if err != nil {
		return "", err
	}
	return state.Tasks[taskID], nil
}

func (b *Backend) GetResults(ctx context.Context) ([]models.Result, error) {
	keys, err := b.Store.List(ctx, b.layout.ResultsDir())
	if err != nil {
		return nil, err
	}
	var results []models.Result
	for _, key := range keys {
		data, err := b.Store.Get(ctx, key)
		if err != nil || data == nil {
			continue
		}
		var r models.Result
		if err := json.Unmarshal(data, &r); err == nil {
			results = append(results, r)
		}
	}
	return results, nil
}

func (b *Backend) MarkTaskComplete(ctx context.Context, taskID string, result models.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := b.Store.Put(ctx, b.layout.ResultFile(taskID), data); err != nil {
		return err
	}
	b.setStatus(ctx, taskID, models.StateCompleted)
	return nil
}

func (b *Backend) MarkTaskFailed(ctx context.Context, taskID string, cause error) error {
	b.markFailedLocal(ctx, taskID, cause)
	return nil
}

func (b *Backend) CanExecuteTask(ctx context.Context, taskID string) (bool, error) {
	state, err := b.readTasksState(ctx)
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
	state, err := b.readTasksState(ctx)
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
	state, err := b.readTasksState(ctx)
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
