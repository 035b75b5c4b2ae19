// Package durable holds scaffolding shared by the durable, crash-tolerant
// backends (local cluster and cloud batch): the on-disk/object-store state
// layout, and topological submission-wave ordering. Grounded on the
// identical directory layout duplicated across the cluster-style and
// cloud-batch-style backends in the system this was distilled from.
package durable

import "path/filepath"

// StateLayout names the files and directories a durable backend's state
// lives under, rooted at a single base path (a local directory, or an
// object-store prefix rendered with forward slashes).
type StateLayout struct {
	Base string
}

func NewStateLayout(base string) StateLayout {
	return StateLayout{Base: base}
}

func (l StateLayout) MarkerFile() string        { return filepath.Join(l.Base, "marker.json") }
func (l StateLayout) TasksFile() string         { return filepath.Join(l.Base, "tasks.json") }
func (l StateLayout) JobsFile() string          { return filepath.Join(l.Base, "jobs.json") }
func (l StateLayout) TaskDefinitionsDir() string { return filepath.Join(l.Base, "task_definitions") }
func (l StateLayout) ResultsDir() string        { return filepath.Join(l.Base, "results") }
func (l StateLayout) ScriptsDir() string        { return filepath.Join(l.Base, "scripts") }
func (l StateLayout) LogsDir() string           { return filepath.Join(l.Base, "logs") }

func (l StateLayout) TaskDefinitionFile(taskID string) string {
	return filepath.Join(l.TaskDefinitionsDir(), taskID+".json")
}

func (l StateLayout) ResultFile(taskID string) string {
	return filepath.Join(l.ResultsDir(), taskID+".json")
}

func (l StateLayout) ScriptFile(taskID string) string {
	return filepath.Join(l.ScriptsDir(), taskID+".sh")
}

func (l StateLayout) StdoutLogFile(taskID string) string {
	return filepath.Join(l.LogsDir(), taskID+".out")
}

func (l StateLayout) StderrLogFile(taskID string) string {
	return filepath.Join(l.LogsDir(), taskID+".err")
}

// Dirs returns every directory that must exist before a run can begin.
func (l StateLayout) Dirs() []string {
	return []string{
		l.Base,
		l.TaskDefinitionsDir(),
		l.ResultsDir(),
		l.ScriptsDir(),
		l.LogsDir(),
	}
}
