package models

import "testing"

func TestTaskValidate(t *testing.T) {
	cases := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"valid", Task{ID: "1", Name: "build", Priority: PriorityDefault}, false},
		{"missing id", Task{Name: "build", Priority: PriorityDefault}, true},
		{"missing name", Task{ID: "1", Priority: PriorityDefault}, true},
		{"priority too high", Task{ID: "1", Name: "build", Priority: 0}, true},
		{"priority too low", Task{ID: "1", Name: "build", Priority: 6}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestHasCyclicDependencies(t *testing.T) {
	t.Run("acyclic chain", func(t *testing.T) {
		deps := map[string][]string{
			"B": {"A"},
			"C": {"B"},
		}
		if HasCyclicDependencies([]string{"A", "B", "C"}, deps) {
			t.Fatal("expected no cycle")
		}
	})

	t.Run("simple cycle", func(t *testing.T) {
		deps := map[string][]string{
			"A": {"B"},
			"B": {"A"},
		}
		if !HasCyclicDependencies([]string{"A", "B"}, deps) {
			t.Fatal("expected cycle to be detected")
		}
	})

	t.Run("self reference", func(t *testing.T) {
		deps := map[string][]string{"A": {"A"}}
		if !HasCyclicDependencies([]string{"A"}, deps) {
			t.Fatal("expected self-reference to be treated as a cycle")
		}
	})

	t.Run("fan out fan in is acyclic", func(t *testing.T) {
		deps := map[string][]string{
			"B": {"A"},
			"C": {"A"},
			"D": {"B", "C"},
		}
		if HasCyclicDependencies([]string{"A", "B", "C", "D"}, deps) {
			t.Fatal("expected no cycle in diamond dependency graph")
		}
	})

	t.Run("unknown dependency is ignored, not a cycle", func(t *testing.T) {
		deps := map[string][]string{"A": {"ghost"}}
		if HasCyclicDependencies([]string{"A"}, deps) {
			t.Fatal("dangling dependency reference should not be reported as a cycle")
		}
	})
}
