package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/parallelorc/internal/models"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering.
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run events to a writer with timestamps, thread safety,
// and log-level filtering. Color output is automatically enabled when
// writing to a TTY (os.Stdout/os.Stderr) and disabled otherwise, unless
// overridden via ApplyConsoleConfig.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool

	progressBar   *ProgressBar
	compactMode   bool
	showDurations bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded. logLevel
// determines the minimum level for messages to be output; an empty or
// invalid value defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:        writer,
		logLevel:      normalizeLogLevel(logLevel),
		colorOutput:   isTerminal(writer),
		showDurations: true,
	}
}

// ApplyConsoleConfig overrides this logger's color/progress-bar/compact/
// duration display with explicit settings loaded from configuration,
// taking precedence over the writer's own TTY auto-detection.
func (cl *ConsoleLogger) ApplyConsoleConfig(total int, enableColor, enableProgressBar, compactMode, showDurations bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.colorOutput = enableColor
	cl.compactMode = compactMode
	cl.showDurations = showDurations
	if enableProgressBar && total > 0 {
		cl.progressBar = NewProgressBar(total, 30, enableColor)
	} else {
		cl.progressBar = nil
	}
}

// isTerminal reports whether w is a TTY-backed os.Stdout/os.Stderr.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if validLevels[normalized] {
		return normalized
	}
	return "info"
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }
func (cl *ConsoleLogger) LogInfo(message string)  { cl.logWithLevel("INFO", message) }
func (cl *ConsoleLogger) LogWarn(message string)  { cl.logWithLevel("WARN", message) }
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorizeLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}
	cl.writer.Write([]byte(formatted))
}

func colorizeLevel(level string) string {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// LogRunStart announces the run and its task count at INFO level.
func (cl *ConsoleLogger) LogRunStart(runID string, totalTasks int) {
	taskLabel := "task"
	if totalTasks != 1 {
		taskLabel = "tasks"
	}
	cl.LogInfo(fmt.Sprintf("run %s: %d %s planned", runID, totalTasks, taskLabel))
}

// LogWaveStart announces a topological wave becoming ready at INFO level.
func (cl *ConsoleLogger) LogWaveStart(waveIndex int, taskIDs []string) {
	if !cl.shouldLog("info") {
		return
	}
	cl.LogInfo(fmt.Sprintf("wave %d ready: %s", waveIndex, strings.Join(taskIDs, ", ")))
}

// LogTaskStart announces a worker claiming a task at INFO level.
func (cl *ConsoleLogger) LogTaskStart(task models.Task) {
	cl.LogInfo(fmt.Sprintf("task %s started: %s", task.ID, task.Name))
}

// LogTaskRetry announces a retry at WARN level.
func (cl *ConsoleLogger) LogTaskRetry(taskID string, attempt int, delay time.Duration, cause error) {
	cl.LogWarn(fmt.Sprintf("task %s retry %d in %s: %v", taskID, attempt, delay, cause))
}

// LogTaskResult reports a task's terminal outcome. Failures log at ERROR,
// skips at WARN, completions at INFO.
func (cl *ConsoleLogger) LogTaskResult(result models.Result, state models.TaskState) {
	icon := statusIcon(state)
	stateLabel := string(state)
	if cl.colorOutput {
		stateLabel = colorizeState(state)
	}

	var message string
	if cl.showDurations {
		message = fmt.Sprintf("%s task %s: %s (%.1fs)", icon, result.TaskID, stateLabel, result.ExecutionTime.Seconds())
	} else {
		message = fmt.Sprintf("%s task %s: %s", icon, result.TaskID, stateLabel)
	}
	if metrics := formatColorizedMetrics(result.Metrics); metrics != "" {
		message = fmt.Sprintf("%s [%s]", message, metrics)
	}

	cl.mutex.Lock()
	if cl.progressBar != nil {
		cl.progressBar.Increment()
		message = fmt.Sprintf("%s %s", cl.progressBar.Render(), message)
	}
	cl.mutex.Unlock()

	switch state {
	case models.StateTerminalFailed:
		cl.LogError(message)
	case models.StateSkipped:
		cl.LogWarn(message)
	default:
		cl.LogInfo(message)
	}
}

func statusIcon(state models.TaskState) string {
	switch state {
	case models.StateCompleted:
		return "✓"
	case models.StateTerminalFailed:
		return "✗"
	case models.StateSkipped:
		return "⊘"
	default:
		return "•"
	}
}

func colorizeState(state models.TaskState) string {
	switch state {
	case models.StateCompleted:
		return color.New(color.FgGreen).Sprint(string(state))
	case models.StateTerminalFailed:
		return color.New(color.FgRed).Sprint(string(state))
	case models.StateSkipped:
		return color.New(color.FgYellow).Sprint(string(state))
	default:
		return string(state)
	}
}

// LogSummary prints the final run statistics at INFO level.
func (cl *ConsoleLogger) LogSummary(summary *models.RunSummary) {
	if !cl.shouldLog("info") {
		return
	}

	status := "SUCCESS"
	if !summary.Success {
		if summary.Completed == 0 {
			status = "FAILED"
		} else {
			status = "PARTIAL"
		}
	}

	ts := timestamp()
	var message string
	if cl.compactMode {
		message = fmt.Sprintf("[%s] run summary: %s total=%d completed=%d failed=%d skipped=%d duration=%.1fs\n",
			ts, status, summary.TotalTasks, summary.Completed, summary.Failed, summary.Skipped, summary.Duration.Seconds())
	} else {
		message = fmt.Sprintf(
			"\n[%s] === RUN SUMMARY ===\n"+
				"[%s] Total tasks:  %d\n"+
				"[%s] Completed:    %d\n"+
				"[%s] Failed:       %d\n"+
				"[%s] Skipped:      %d\n"+
				"[%s] Duration:     %.1fs\n"+
				"[%s] Status:       %s (%d/%d)\n",
			ts, ts, summary.TotalTasks, ts, summary.Completed, ts, summary.Failed,
			ts, summary.Skipped, ts, summary.Duration.Seconds(), ts, status,
			summary.Completed, summary.TotalTasks,
		)
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	if cl.writer != nil {
		cl.writer.Write([]byte(message))
	}
}

// Close is a no-op; ConsoleLogger does not own its writer's lifecycle.
func (cl *ConsoleLogger) Close() error { return nil }
