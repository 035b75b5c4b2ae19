package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStaticPlannerParsesTaskFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")

	content := `tasks:
  - id: A
    name: fetch data
  - id: B
    name: process data
    priority: 1
    depends_on: [A]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write task file: %v", err)
	}

	p := NewStaticPlanner()
	n, plan, err := p.Plan(context.Background(), path, 4)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("task count = %d, want 2", n)
	}
	if plan.ExecutorBudget != 4 {
		t.Fatalf("ExecutorBudget = %d, want 4", plan.ExecutorBudget)
	}

	taskA, ok := plan.TaskByID("A")
	if !ok || taskA.Priority != 3 {
		t.Fatalf("expected task A with default priority 3, got %+v ok=%v", taskA, ok)
	}

	if deps := plan.Dependencies["B"]; len(deps) != 1 || deps[0] != "A" {
		t.Fatalf("expected B to depend on A, got %v", deps)
	}
}

func TestStaticPlannerMissingFile(t *testing.T) {
	p := NewStaticPlanner()
	if _, _, err := p.Plan(context.Background(), "/does/not/exist.yaml", 1); err == nil {
		t.Fatal("expected error for missing task file")
	}
}
