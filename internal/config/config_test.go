package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxExecutors != 0 {
		t.Errorf("MaxExecutors = %d, want 0", cfg.MaxExecutors)
	}
	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "memory")
	}
	if cfg.WaitCeiling != 2*time.Hour {
		t.Errorf("WaitCeiling = %v, want 2h", cfg.WaitCeiling)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `max_executors: 5
backend: cluster
wait_ceiling: 30m
log_level: debug
retry:
  max_retries: 1
cluster:
  work_dir: /tmp/cluster-state
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.MaxExecutors != 5 {
		t.Errorf("MaxExecutors = %d, want 5", cfg.MaxExecutors)
	}
	if cfg.Backend != "cluster" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "cluster")
	}
	if cfg.WaitCeiling != 30*time.Minute {
		t.Errorf("WaitCeiling = %v, want 30m", cfg.WaitCeiling)
	}
	if cfg.Retry.MaxRetries != 1 {
		t.Errorf("Retry.MaxRetries = %d, want 1", cfg.Retry.MaxRetries)
	}
	if cfg.Cluster.WorkDir != "/tmp/cluster-state" {
		t.Errorf("Cluster.WorkDir = %q, want %q", cfg.Cluster.WorkDir, "/tmp/cluster-state")
	}
	// Untouched sections keep their defaults.
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want default 10s", cfg.PollInterval)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want default %q", cfg.Backend, "memory")
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("not: [valid yaml"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("expected error loading malformed config, got nil")
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	maxExecutors := 8
	backend := "container"
	dryRun := true

	cfg.MergeWithFlags(&maxExecutors, nil, &backend, &dryRun, nil)

	if cfg.MaxExecutors != 8 {
		t.Errorf("MaxExecutors = %d, want 8", cfg.MaxExecutors)
	}
	if cfg.Backend != "container" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "container")
	}
	if !cfg.DryRun {
		t.Error("DryRun = false, want true")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "teleport"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}
}

func TestValidateRequiresCloudBatchFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "cloudbatch"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for cloudbatch backend missing bucket/queue/definition")
	}

	cfg.CloudBatch.Bucket = "my-bucket"
	cfg.CloudBatch.JobQueue = "my-queue"
	cfg.CloudBatch.JobDefinition = "my-def"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid cloudbatch config, got: %v", err)
	}
}

func TestValidateRequiresContainerImage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "container"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for container backend missing image")
	}

	cfg.Container.Image = "busybox"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid container config, got: %v", err)
	}
}
