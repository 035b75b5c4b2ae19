// Package logger provides logging implementations for orchestrator runs.
//
// Implementations report scheduler-level events (run/wave/task lifecycle,
// retries, the final summary) to a destination (console, file). All
// implementations are safe for concurrent use, since worker goroutines and
// the scheduler's monitor loop may log at the same time.
package logger

import (
	"time"

	"github.com/harrison/parallelorc/internal/models"
)

// Logger receives orchestrator run events. Concurrent calls from multiple
// worker goroutines must be safe.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)

	// LogRunStart is called once, before the plan is handed to the
	// scheduler (which validates it and submits it).
	LogRunStart(runID string, totalTasks int)

	// LogWaveStart is called as each topological wave becomes ready.
	LogWaveStart(waveIndex int, taskIDs []string)

	// LogTaskStart is called when a worker claims a task.
	LogTaskStart(task models.Task)

	// LogTaskRetry is called when a failed task is about to be resubmitted.
	LogTaskRetry(taskID string, attempt int, delay time.Duration, cause error)

	// LogTaskResult is called when a task reaches a terminal state
	// (completed, failed, or skipped).
	LogTaskResult(result models.Result, state models.TaskState)

	// LogSummary is called once, after the run finishes or times out.
	LogSummary(summary *models.RunSummary)

	// Close flushes and releases any resources the logger holds open.
	Close() error
}

// NoOpLogger discards all events. Useful in tests.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (n *NoOpLogger) LogTrace(string)                                              {}
func (n *NoOpLogger) LogDebug(string)                                              {}
func (n *NoOpLogger) LogInfo(string)                                               {}
func (n *NoOpLogger) LogWarn(string)                                               {}
func (n *NoOpLogger) LogError(string)                                              {}
func (n *NoOpLogger) LogRunStart(string, int)                                      {}
func (n *NoOpLogger) LogWaveStart(int, []string)                                   {}
func (n *NoOpLogger) LogTaskStart(models.Task)                                     {}
func (n *NoOpLogger) LogTaskRetry(string, int, time.Duration, error)               {}
func (n *NoOpLogger) LogTaskResult(models.Result, models.TaskState)                {}
func (n *NoOpLogger) LogSummary(*models.RunSummary)                                {}
func (n *NoOpLogger) Close() error                                                 { return nil }
