package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/harrison/parallelorc/internal/models"
)

func TestConsoleLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "warn")

	cl.LogInfo("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected info message to be filtered out, got %q", buf.String())
	}

	cl.LogWarn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn message to be logged, got %q", buf.String())
	}
}

func TestConsoleLoggerDefaultsToInfoOnInvalidLevel(t *testing.T) {
	cl := NewConsoleLogger(&bytes.Buffer{}, "not-a-level")
	if cl.logLevel != "info" {
		t.Fatalf("logLevel = %q, want info", cl.logLevel)
	}
}

func TestConsoleLoggerNilWriterDiscardsMessages(t *testing.T) {
	cl := NewConsoleLogger(nil, "trace")
	cl.LogInfo("anything") // must not panic
}

func TestConsoleLoggerLogTaskResult(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	cl.LogTaskResult(models.Result{TaskID: "A", ExecutionTime: 2 * time.Second}, models.StateCompleted)
	if !strings.Contains(buf.String(), "task A") || !strings.Contains(buf.String(), "COMPLETED") {
		t.Fatalf("expected completed task log, got %q", buf.String())
	}
}

func TestConsoleLoggerLogSummary(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	summary := &models.RunSummary{TotalTasks: 3, Completed: 2, Failed: 1, Success: false}
	cl.LogSummary(summary)

	out := buf.String()
	if !strings.Contains(out, "RUN SUMMARY") || !strings.Contains(out, "PARTIAL") {
		t.Fatalf("expected partial-status summary, got %q", out)
	}
}

func TestFormatColorizedMetricsIncludesMetricLabel(t *testing.T) {
	out := formatColorizedMetrics(map[string]interface{}{"error_count": 2})
	if !strings.Contains(out, "error_count") {
		t.Fatalf("expected metric label in output, got %q", out)
	}
}
