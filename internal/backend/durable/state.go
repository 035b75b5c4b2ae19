package durable

import (
	"encoding/json"

	"github.com/harrison/parallelorc/internal/models"
)

// TasksFileState is the JSON shape of tasks.json: per-task status plus the
// four status buckets that status belongs to, so readers don't have to
// rebuild the buckets by scanning every task.
type TasksFileState struct {
	Tasks      map[string]models.TaskState `json:"tasks"`
	Completed  []string                    `json:"completed"`
	InProgress []string                    `json:"in_progress"`
	Failed     []string                    `json:"failed"`
	Pending    []string                    `json:"pending"`
}

func NewTasksFileState() *TasksFileState {
	return &TasksFileState{Tasks: make(map[string]models.TaskState)}
}

// SetStatus moves taskID into the bucket matching status, removing it from
// whichever bucket it was previously in.
func (s *TasksFileState) SetStatus(taskID string, status models.TaskState) {
	s.Tasks[taskID] = status
	s.Completed = remove(s.Completed, taskID)
	s.InProgress = remove(s.InProgress, taskID)
	s.Failed = remove(s.Failed, taskID)
	s.Pending = remove(s.Pending, taskID)

	switch status {
	case models.StateCompleted:
		s.Completed = append(s.Completed, taskID)
	case models.StateInProgress:
		s.InProgress = append(s.InProgress, taskID)
	case models.StateFailed, models.StateTerminalFailed:
		s.Failed = append(s.Failed, taskID)
	default:
		s.Pending = append(s.Pending, taskID)
	}
}

func remove(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *TasksFileState) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func UnmarshalTasksFileState(data []byte) (*TasksFileState, error) {
	if len(data) == 0 {
		return NewTasksFileState(), nil
	}
	s := NewTasksFileState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.Tasks == nil {
		s.Tasks = make(map[string]models.TaskState)
	}
	return s, nil
}

// TaskDefinition is the full durable snapshot written for each task at
// submission time: the task payload itself plus the plan and requirements
// it was submitted under, so a crashed run can be reconstructed and
// re-executed from state files alone without the original RunContext.
type TaskDefinition struct {
	Task         models.Task  `json:"task"`
	Plan         *models.Plan `json:"plan"`
	Requirements string       `json:"requirements"`
}

func (d *TaskDefinition) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func UnmarshalTaskDefinition(data []byte) (*TaskDefinition, error) {
	d := &TaskDefinition{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, err
	}
	return d, nil
}

// JobsFileState is the JSON shape of jobs.json: the run id and the
// task-id -> native job-id mapping.
type JobsFileState struct {
	RunID string            `json:"run_id"`
	Jobs  map[string]string `json:"jobs"`
}

func NewJobsFileState(runID string) *JobsFileState {
	return &JobsFileState{RunID: runID, Jobs: make(map[string]string)}
}

func (s *JobsFileState) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func UnmarshalJobsFileState(data []byte) (*JobsFileState, error) {
	if len(data) == 0 {
		return NewJobsFileState(""), nil
	}
	s := &JobsFileState{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.Jobs == nil {
		s.Jobs = make(map[string]string)
	}
	return s, nil
}
