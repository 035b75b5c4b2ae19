// Package cloudbatch implements the managed-cloud-batch durable backend:
// object-store state under s3://bucket/prefix/<run_id>/ (tasks.json,
// jobs.json, task_definitions/, results/) plus a managed batch service that translates dependency sets into its own
// native job-dependency expressions.
package cloudbatch

import "context"

// JobDependency is one entry of a job's dependency list, matching the
// managed batch service's native SEQUENTIAL dependency-type encoding: a
// job becomes runnable once every listed dependency reaches SUCCEEDED.
type JobDependency struct {
	JobID string
	Type  string // "SEQUENTIAL"
}

// JobStatus is the batch service's reported status for a submitted job.
type JobStatus string

const (
	StatusSubmitted JobStatus = "SUBMITTED"
	StatusRunnable  JobStatus = "RUNNABLE"
	StatusRunning   JobStatus = "RUNNING"
	StatusSucceeded JobStatus = "SUCCEEDED"
	StatusFailed    JobStatus = "FAILED"
)

var terminalStates = map[JobStatus]bool{
	StatusSucceeded: true,
	StatusFailed:    true,
}

// IsTerminal reports whether status will never change again.
func (s JobStatus) IsTerminal() bool { return terminalStates[s] }

// JobDescription is one job's reported state from a Describe call.
type JobDescription struct {
	JobID        string
	Status       JobStatus
	StatusReason string
}

// BatchJobService is the managed batch service contract: submit a job
// definition with an optional dependency list, and describe one or more
// jobs' current state.
type BatchJobService interface {
	SubmitJob(ctx context.Context, name, queue, definition string, dependsOn []JobDependency, overrides map[string]string, timeout int) (jobID string, err error)
	DescribeJobs(ctx context.Context, jobIDs []string) ([]JobDescription, error)
}
