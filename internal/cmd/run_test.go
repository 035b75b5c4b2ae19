package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTaskFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "tasks.yaml")
	content := `tasks:
  - id: A
    name: fetch
  - id: B
    name: process
    depends_on: [A]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write task file: %v", err)
	}
	return path
}

func TestRunCommandDryRunPrintsWaves(t *testing.T) {
	dir := t.TempDir()
	taskFile := writeTaskFile(t, dir)
	t.Setenv("PARALLELORC_HOME", dir)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run", taskFile, "--dry-run", "--output-dir", filepath.Join(dir, "out")})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "2 task(s)") {
		t.Fatalf("expected dry-run summary, got %q", got)
	}
	if !strings.Contains(got, "wave 1:") || !strings.Contains(got, "wave 2:") {
		t.Fatalf("expected two waves printed, got %q", got)
	}
}

func TestRunCommandExecutesAgainstMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	taskFile := writeTaskFile(t, dir)
	t.Setenv("PARALLELORC_HOME", dir)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run", taskFile, "--threading", "--output-dir", filepath.Join(dir, "out"), "--log-level", "info"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "out", "A", "done.marker")); err != nil {
		t.Fatalf("expected task A marker file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "B", "done.marker")); err != nil {
		t.Fatalf("expected task B marker file: %v", err)
	}
}

func TestSelectedBackendNameDefaultsToFallback(t *testing.T) {
	root := NewRunCommand()
	got := selectedBackendName(root, "memory")
	if got != "memory" {
		t.Fatalf("selectedBackendName() = %q, want memory", got)
	}
}

func TestSelectedBackendNameMapsCloudClusterToCluster(t *testing.T) {
	root := NewRunCommand()
	if err := root.Flags().Set("cloud-cluster", "true"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	got := selectedBackendName(root, "memory")
	if got != "cluster" {
		t.Fatalf("selectedBackendName() = %q, want cluster", got)
	}
}
