package runhistory

import (
	"context"
	"testing"
	"time"

	"github.com/harrison/parallelorc/internal/models"
)

func TestRecordRunAndListRuns(t *testing.T) {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	summary := &models.RunSummary{
		TotalTasks:  3,
		Completed:   2,
		Failed:      1,
		SuccessRate: 2.0 / 3.0,
		Duration:    5 * time.Second,
	}
	started := time.Now().Add(-5 * time.Second)
	finished := time.Now()

	if err := store.RecordRun(ctx, "run-1", "reqs.yaml", "memory", summary, started, finished); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	records, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].RunID != "run-1" || records[0].TotalTasks != 3 || records[0].CompletedTasks != 2 {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestRecordRunRejectsDuplicateRunID(t *testing.T) {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	summary := &models.RunSummary{TotalTasks: 1, Completed: 1, SuccessRate: 1}
	now := time.Now()

	if err := store.RecordRun(ctx, "run-dup", "reqs.yaml", "memory", summary, now, now); err != nil {
		t.Fatalf("first RecordRun() error = %v", err)
	}
	if err := store.RecordRun(ctx, "run-dup", "reqs.yaml", "memory", summary, now, now); err == nil {
		t.Fatal("expected error recording duplicate run_id")
	}
}

func TestGetRunNotFound(t *testing.T) {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	if _, err := store.GetRun(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}
