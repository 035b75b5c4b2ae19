package cloudbatch

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/scheduler"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s *memStore) Sync(ctx context.Context, localDir, prefix string) error { return nil }

func (s *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type fakeJobs struct {
	mu          sync.Mutex
	jobs        map[string]JobStatus
	lastDeps    map[string][]JobDependency
	nextID      int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]JobStatus{}, lastDeps: map[string][]JobDependency{}}
}

func (f *fakeJobs) SubmitJob(ctx context.Context, name, queue, definition string, dependsOn []JobDependency, overrides map[string]string, timeout int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := name
	f.jobs[id] = StatusSucceeded // resolve instantly for test purposes
	f.lastDeps[name] = dependsOn
	return id, nil
}

func (f *fakeJobs) DescribeJobs(ctx context.Context, jobIDs []string) ([]JobDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []JobDescription
	for _, id := range jobIDs {
		out = append(out, JobDescription{JobID: id, Status: f.jobs[id]})
	}
	return out, nil
}

func TestCloudBatchTranslatesMultiPredecessorsToSequentialEntries(t *testing.T) {
	store := newMemStore()
	jobs := newFakeJobs()
	retry := scheduler.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond}
	b := New(store, jobs, Config{Bucket: "b", Prefix: "runs", JobQueue: "q", JobDefinition: "d"}, retry)
	b.PollInterval = 5 * time.Millisecond
	b.WaitCeiling = 2 * time.Second

	runCtx := &models.RunContext{
		RunID: "run-1",
		Plan: &models.Plan{
			Tasks:        []models.Task{{ID: "A"}, {ID: "B"}, {ID: "C"}},
			Dependencies: map[string][]string{"C": {"A", "B"}},
		},
	}

	ctx := context.Background()
	if err := b.Initialize(ctx, runCtx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := b.SubmitTasks(ctx, runCtx.Plan); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := b.WaitForCompletion(ctx, 0); err != nil {
		t.Fatalf("wait: %v", err)
	}

	deps := jobs.lastDeps["task-C"]
	if len(deps) != 2 {
		t.Fatalf("expected 2 SEQUENTIAL dependency entries for C, got %v", deps)
	}
	for _, d := range deps {
		if d.Type != "SEQUENTIAL" {
			t.Fatalf("expected SEQUENTIAL dependency type, got %s", d.Type)
		}
	}
}

func TestCloudBatchMissingResultIsTreatedAsArtifactMissing(t *testing.T) {
	store := newMemStore()
	jobs := newFakeJobs()
	retry := scheduler.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond}
	b := New(store, jobs, Config{Bucket: "b", Prefix: "runs", JobQueue: "q", JobDefinition: "d"}, retry)
	b.PollInterval = 5 * time.Millisecond
	b.WaitCeiling = time.Second

	runCtx := &models.RunContext{RunID: "run-2", Plan: &models.Plan{Tasks: []models.Task{{ID: "A"}}}}
	ctx := context.Background()
	_ = b.Initialize(ctx, runCtx)
	_ = b.SubmitTasks(ctx, runCtx.Plan)
	_ = b.WaitForCompletion(ctx, 0)

	state, _ := b.GetTaskStatus(ctx, "A")
	if state != models.StateTerminalFailed {
		t.Fatalf("expected A to be TERMINAL_FAILED due to missing result artifact, got %v", state)
	}

	results, _ := b.GetResults(ctx)
	found := false
	for _, r := range results {
		if r.TaskID == "A" {
			found = true
			if !strings.Contains(r.Error, "missing result") {
				t.Fatalf("expected missing-result error text, got %q", r.Error)
			}
		}
	}
	if !found {
		t.Fatal("expected a failure result to have been recorded for A")
	}

	var rr models.Result
	data, _ := store.Get(ctx, "runs/run-2/results/A.json")
	_ = json.Unmarshal(data, &rr)
	if rr.Status != models.ResultFailed {
		t.Fatalf("expected stored result status to be failed, got %q", rr.Status)
	}
}
