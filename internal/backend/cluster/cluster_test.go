package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/scheduler"
)

func TestClusterBackendMarkTaskCompleteRecordsCompletedTasks(t *testing.T) {
	dir := t.TempDir()
	sched := NewShellScheduler()
	b := New(sched, func(task models.Task, runCtx *models.RunContext) string {
		return "echo done > /dev/null"
	}, scheduler.DefaultRetryPolicy())
	b.PollInterval = 10 * time.Millisecond
	b.WaitCeiling = 5 * time.Second

	runCtx := &models.RunContext{
		RunID:     "run-1",
		OutputDir: dir,
		Plan: &models.Plan{
			Tasks: []models.Task{{ID: "A", Name: "A"}, {ID: "B", Name: "B"}},
			Dependencies: map[string][]string{
				"B": {"A"},
			},
		},
	}

	ctx := context.Background()
	if err := b.Initialize(ctx, runCtx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := b.SubmitTasks(ctx, runCtx.Plan); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// No job is run in this test (WaitForCompletion is not called), so
	// completion is marked explicitly, exercising the durable
	// result+state write path.
	if err := b.MarkTaskComplete(ctx, "A", models.Result{TaskID: "A", Status: models.ResultCompleted}); err != nil {
		t.Fatalf("mark complete A: %v", err)
	}
	if err := b.MarkTaskComplete(ctx, "B", models.Result{TaskID: "B", Status: models.ResultCompleted}); err != nil {
		t.Fatalf("mark complete B: %v", err)
	}

	completed, err := b.GetCompletedTasks(ctx)
	if err != nil {
		t.Fatalf("get completed: %v", err)
	}
	if !completed["A"] || !completed["B"] {
		t.Fatalf("expected both tasks completed, got %v", completed)
	}
}

func TestClusterSubmitTasksLeavesTaskPending(t *testing.T) {
	dir := t.TempDir()
	sched := NewShellScheduler()
	b := New(sched, func(task models.Task, runCtx *models.RunContext) string { return "true" }, scheduler.DefaultRetryPolicy())

	ctx := context.Background()
	runCtx := &models.RunContext{RunID: "run-2", OutputDir: dir, Plan: &models.Plan{Tasks: []models.Task{{ID: "A", Name: "A"}}}}
	if err := b.Initialize(ctx, runCtx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := b.SubmitTasks(ctx, runCtx.Plan); err != nil {
		t.Fatalf("submit: %v", err)
	}

	status, err := b.GetTaskStatus(ctx, "A")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status != models.StatePending {
		t.Fatalf("expected A to be PENDING after submit, got %v", status)
	}
}
