package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrison/parallelorc/internal/models"
)

// FileLogger logs run events to files under a log directory: a timestamped
// per-run log, a latest.log symlink pointing at it, and a per-task detail
// file in a tasks/ subdirectory. It is thread-safe and filters by log
// level like ConsoleLogger.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	tasksDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing under logDir at the given
// log level. The directory (and its tasks/ subdirectory) is created if
// it doesn't exist.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directories: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		tasksDir: tasksDir,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.writeRunLog(fmt.Sprintf("=== Run Log ===\nStarted at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level, message string) {
	if !fl.shouldLog(normalizeLogLevel(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

func (fl *FileLogger) LogRunStart(runID string, totalTasks int) {
	fl.LogInfo(fmt.Sprintf("run %s: %d tasks planned", runID, totalTasks))
}

func (fl *FileLogger) LogWaveStart(waveIndex int, taskIDs []string) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] wave %d ready: %v\n", timestamp(), waveIndex, taskIDs))
}

func (fl *FileLogger) LogTaskStart(task models.Task) {
	fl.LogInfo(fmt.Sprintf("task %s started: %s", task.ID, task.Name))
}

func (fl *FileLogger) LogTaskRetry(taskID string, attempt int, delay time.Duration, cause error) {
	fl.LogWarn(fmt.Sprintf("task %s retry %d in %s: %v", taskID, attempt, delay, cause))
}

// LogTaskResult logs a one-line summary to the run log and writes a
// detailed per-task file under tasks/.
func (fl *FileLogger) LogTaskResult(result models.Result, state models.TaskState) {
	fl.writeRunLog(fmt.Sprintf("[%s] task %s: %s (%.1fs)\n", timestamp(), result.TaskID, state, result.ExecutionTime.Seconds()))

	fl.mu.Lock()
	defer fl.mu.Unlock()

	path := filepath.Join(fl.tasksDir, fmt.Sprintf("%s.log", result.TaskID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	defer file.Close()

	content := fmt.Sprintf("=== Task %s ===\nState: %s\nDuration: %.1fs\n", result.TaskID, state, result.ExecutionTime.Seconds())
	if result.Error != "" {
		content += fmt.Sprintf("Error: %s\n", result.Error)
	}
	if len(result.OutputFiles) > 0 {
		content += fmt.Sprintf("Output files: %v\n", result.OutputFiles)
	}
	content += fmt.Sprintf("Completed at: %s\n", time.Now().Format(time.RFC3339))
	file.WriteString(content)
}

// LogSummary writes the final run statistics to the run log.
func (fl *FileLogger) LogSummary(summary *models.RunSummary) {
	if !fl.shouldLog("info") {
		return
	}
	ts := timestamp()
	status := "SUCCESS"
	if !summary.Success {
		if summary.Completed == 0 {
			status = "FAILED"
		} else {
			status = "PARTIAL"
		}
	}
	message := fmt.Sprintf(
		"\n[%s] === RUN SUMMARY ===\n[%s] Total tasks: %d\n[%s] Completed: %d\n"+
			"[%s] Failed: %d\n[%s] Skipped: %d\n[%s] Duration: %.1fs\n[%s] Status: %s\n",
		ts, ts, summary.TotalTasks, ts, summary.Completed, ts, summary.Failed,
		ts, summary.Skipped, ts, summary.Duration.Seconds(), ts, status,
	)
	fl.writeRunLog(message)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog == nil {
		return nil
	}
	if err := fl.runLog.Sync(); err != nil {
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
