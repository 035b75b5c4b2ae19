package models

import "testing"

func TestPlanDirectDependents(t *testing.T) {
	p := &Plan{
		Tasks: []Task{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		Dependencies: map[string][]string{
			"B": {"A"},
			"C": {"A"},
		},
	}

	got := p.DirectDependents("A")
	if len(got) != 2 {
		t.Fatalf("expected 2 direct dependents of A, got %d (%v)", len(got), got)
	}

	if len(p.DirectDependents("C")) != 0 {
		t.Fatal("C should have no dependents")
	}
}

func TestPlanTaskByID(t *testing.T) {
	p := &Plan{Tasks: []Task{{ID: "A", Name: "first"}}}

	task, ok := p.TaskByID("A")
	if !ok || task.Name != "first" {
		t.Fatalf("expected to find task A, got %+v ok=%v", task, ok)
	}

	if _, ok := p.TaskByID("missing"); ok {
		t.Fatal("expected missing task id to not be found")
	}
}
