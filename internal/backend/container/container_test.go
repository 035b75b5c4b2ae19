package container

import (
	"context"
	"testing"

	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/scheduler"
)

func TestContainerBackendDependencyGating(t *testing.T) {
	b := New(Config{Image: "busybox"}, scheduler.DefaultRetryPolicy())
	ctx := context.Background()

	runCtx := &models.RunContext{
		RunID: "run-1",
		Plan: &models.Plan{
			Tasks:        []models.Task{{ID: "A"}, {ID: "B"}},
			Dependencies: map[string][]string{"B": {"A"}},
		},
	}

	if err := b.Initialize(ctx, runCtx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := b.SubmitTasks(ctx, runCtx.Plan); err != nil {
		t.Fatalf("submit: %v", err)
	}

	canB, _ := b.CanExecuteTask(ctx, "B")
	if canB {
		t.Fatal("B should not be executable before A completes")
	}

	if err := b.MarkTaskComplete(ctx, "A", models.Result{TaskID: "A", Status: models.ResultCompleted}); err != nil {
		t.Fatalf("mark complete: %v", err)
	}

	canB, _ = b.CanExecuteTask(ctx, "B")
	if !canB {
		t.Fatal("B should be executable once A has completed")
	}
}

func TestContainerBackendMarkFailedPropagatesSkip(t *testing.T) {
	b := New(Config{Image: "busybox"}, scheduler.DefaultRetryPolicy())
	ctx := context.Background()

	runCtx := &models.RunContext{
		RunID: "run-2",
		Plan: &models.Plan{
			Tasks:        []models.Task{{ID: "A"}, {ID: "B"}},
			Dependencies: map[string][]string{"B": {"A"}},
		},
	}
	_ = b.Initialize(ctx, runCtx)
	_ = b.SubmitTasks(ctx, runCtx.Plan)

	if err := b.MarkTaskFailed(ctx, "A", context.DeadlineExceeded); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stB, _ := b.GetTaskStatus(ctx, "B")
	if stB != models.StateSkipped {
		t.Fatalf("expected B to be SKIPPED after A terminally failed, got %v", stB)
	}
}
