package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrison/parallelorc/internal/models"
)

func TestEchoExecutorWritesMarkerAndCompletes(t *testing.T) {
	dir := t.TempDir()
	e := NewEchoExecutor()

	runCtx := &models.RunContext{RunID: "run-1", OutputDir: dir}
	result, err := e.Execute(context.Background(), models.Task{ID: "A"}, runCtx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != models.ResultCompleted {
		t.Fatalf("Status = %q, want completed", result.Status)
	}
	if len(result.OutputFiles) != 1 {
		t.Fatalf("expected one output file, got %v", result.OutputFiles)
	}

	if _, err := os.Stat(filepath.Join(dir, "A", "done.marker")); err != nil {
		t.Fatalf("expected marker file: %v", err)
	}
}

func TestEchoExecutorRespectsFailTaskIDs(t *testing.T) {
	e := NewEchoExecutor()
	e.FailTaskIDs = map[string]bool{"A": true}

	_, err := e.Execute(context.Background(), models.Task{ID: "A"}, &models.RunContext{})
	if err == nil {
		t.Fatal("expected simulated failure for task A")
	}
}

func TestEchoExecutorHonorsContextCancellation(t *testing.T) {
	e := NewEchoExecutor()
	e.SimulatedWork = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, models.Task{ID: "A"}, &models.RunContext{})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}
