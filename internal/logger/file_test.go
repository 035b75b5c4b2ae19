package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/parallelorc/internal/models"
)

func TestFileLoggerWritesRunLogAndLatestSymlink(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	defer fl.Close()

	fl.LogRunStart("run-1", 3)
	fl.LogTaskResult(models.Result{TaskID: "A", ExecutionTime: time.Second}, models.StateCompleted)

	latest := filepath.Join(dir, "latest.log")
	if _, err := os.Lstat(latest); err != nil {
		t.Fatalf("expected latest.log symlink: %v", err)
	}

	taskLog := filepath.Join(dir, "tasks", "A.log")
	data, err := os.ReadFile(taskLog)
	if err != nil {
		t.Fatalf("expected per-task log file: %v", err)
	}
	if !strings.Contains(string(data), "COMPLETED") {
		t.Fatalf("expected task log to record state, got %q", string(data))
	}
}

func TestFileLoggerCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
