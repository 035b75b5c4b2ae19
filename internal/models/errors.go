package models

import (
	"errors"
	"fmt"
)

// PlanInvalidError is a fatal error raised during plan validation; it is
// never retried. Reason is a short machine-checkable tag, e.g.
// "CyclicDependency", "UnknownDependency", "DuplicateTaskId".
type PlanInvalidError struct {
	Reason string
	Detail string
}

func NewPlanInvalidError(reason, detail string) *PlanInvalidError {
	return &PlanInvalidError{Reason: reason, Detail: detail}
}

func (e *PlanInvalidError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("plan invalid: %s", e.Reason)
	}
	return fmt.Sprintf("plan invalid: %s: %s", e.Reason, e.Detail)
}

// BackendUnavailableError is a fatal, run-aborting error: the backend itself
// could not be reached or initialized.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func NewBackendUnavailableError(backend string, err error) *BackendUnavailableError {
	return &BackendUnavailableError{Backend: backend, Err: err}
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// SubmitFailedError is a retryable per-task failure: the backend could not
// submit/enqueue the task for execution.
type SubmitFailedError struct {
	TaskID string
	Err    error
}

func NewSubmitFailedError(taskID string, err error) *SubmitFailedError {
	return &SubmitFailedError{TaskID: taskID, Err: err}
}

func (e *SubmitFailedError) Error() string {
	return fmt.Sprintf("task %s: submit failed: %v", e.TaskID, e.Err)
}

func (e *SubmitFailedError) Unwrap() error { return e.Err }

// ExecutionFailedError is a retryable per-task failure: the task ran but did
// not complete successfully.
type ExecutionFailedError struct {
	TaskID string
	Err    error
}

func NewExecutionFailedError(taskID string, err error) *ExecutionFailedError {
	return &ExecutionFailedError{TaskID: taskID, Err: err}
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("task %s: execution failed: %v", e.TaskID, e.Err)
}

func (e *ExecutionFailedError) Unwrap() error { return e.Err }

// TimeoutError marks all non-terminal tasks TERMINAL_FAILED when the
// wall-clock ceiling for a run is exceeded.
type TimeoutError struct {
	RunID   string
	Waited  string
	Ceiling string
}

func NewTimeoutError(runID, waited, ceiling string) *TimeoutError {
	return &TimeoutError{RunID: runID, Waited: waited, Ceiling: ceiling}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run %s: timed out after %s (ceiling %s)", e.RunID, e.Waited, e.Ceiling)
}

// StateCorruptedError is fatal but preserves durable state on disk/object
// store for external inspection.
type StateCorruptedError struct {
	Path string
	Err  error
}

func NewStateCorruptedError(path string, err error) *StateCorruptedError {
	return &StateCorruptedError{Path: path, Err: err}
}

func (e *StateCorruptedError) Error() string {
	return fmt.Sprintf("state corrupted at %s: %v", e.Path, e.Err)
}

func (e *StateCorruptedError) Unwrap() error { return e.Err }

// ArtifactMissingError is treated as a retryable ExecutionFailed variant:
// the backend reports a task complete but its result artifact is absent.
type ArtifactMissingError struct {
	TaskID string
}

func NewArtifactMissingError(taskID string) *ArtifactMissingError {
	return &ArtifactMissingError{TaskID: taskID}
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("task %s: missing result", e.TaskID)
}

// MultiError aggregates multiple task-level errors under one run-level
// error, supporting errors.Is/errors.As traversal via Unwrap() []error.
type MultiError struct {
	Errors []error
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d task errors (first: %v)", len(e.Errors), e.Errors[0])
}

func (e *MultiError) Unwrap() []error { return e.Errors }

func (e *MultiError) Add(err error) {
	e.Errors = append(e.Errors, err)
}

// IsRetryable reports whether err represents a per-task failure the retry
// policy should consider retrying (SubmitFailed, ExecutionFailed, or a
// missing artifact), as opposed to a fatal, run-aborting error.
func IsRetryable(err error) bool {
	var submit *SubmitFailedError
	var exec *ExecutionFailedError
	var artifact *ArtifactMissingError
	return errors.As(err, &submit) || errors.As(err, &exec) || errors.As(err, &artifact)
}

// IsFatal reports whether err should abort the run rather than be retried
// at the task level.
func IsFatal(err error) bool {
	var planErr *PlanInvalidError
	var backendErr *BackendUnavailableError
	var stateErr *StateCorruptedError
	return errors.As(err, &planErr) || errors.As(err, &backendErr) || errors.As(err, &stateErr)
}
