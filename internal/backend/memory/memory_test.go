package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/scheduler"
)

type recordingExecutor struct {
	mu      sync.Mutex
	order   []string
	failN   map[string]int // tasks that should fail this many times before succeeding
	attempts map[string]int
	delay   time.Duration
	maxInProgress int32
	inProgress    int32
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{failN: map[string]int{}, attempts: map[string]int{}}
}

func (e *recordingExecutor) Execute(ctx context.Context, task models.Task, runCtx *models.RunContext) (models.Result, error) {
	cur := atomic.AddInt32(&e.inProgress, 1)
	defer atomic.AddInt32(&e.inProgress, -1)
	for {
		old := atomic.LoadInt32(&e.maxInProgress)
		if cur <= old || atomic.CompareAndSwapInt32(&e.maxInProgress, old, cur) {
			break
		}
	}

	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	e.order = append(e.order, task.ID)
	e.attempts[task.ID]++
	attempt := e.attempts[task.ID]
	e.mu.Unlock()

	if attempt <= e.failN[task.ID] {
		return models.Result{}, fmt.Errorf("synthetic failure for %s attempt %d", task.ID, attempt)
	}

	return models.Result{TaskID: task.ID, Status: models.ResultCompleted}, nil
}

func plan(tasks []models.Task, deps map[string][]string, budget int) *models.RunContext {
	return &models.RunContext{
		RunID:     "test-run",
		OutputDir: "/tmp/parallelorc-test",
		Plan: &models.Plan{
			Tasks:          tasks,
			Dependencies:   deps,
			ExecutorBudget: budget,
		},
	}
}

func runBackend(t *testing.T, exec *recordingExecutor, runCtx *models.RunContext, retry scheduler.RetryPolicy) *Backend {
	t.Helper()
	b := New(exec, retry)
	b.IdleSleep = 20 * time.Millisecond
	b.StartStagger = 0

	ctx := context.Background()
	if err := b.Initialize(ctx, runCtx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := b.SubmitTasks(ctx, runCtx.Plan); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := b.WaitForCompletion(ctx, runCtx.Plan.ExecutorBudget); err != nil {
		t.Fatalf("wait: %v", err)
	}
	return b
}

func TestLinearChainCompletesInDependencyOrder(t *testing.T) {
	exec := newRecordingExecutor()
	runCtx := plan(
		[]models.Task{{ID: "A", Name: "A", Priority: 3}, {ID: "B", Name: "B", Priority: 3}, {ID: "C", Name: "C", Priority: 3}},
		map[string][]string{"B": {"A"}, "C": {"B"}},
		3,
	)
	runBackend(t, exec, runCtx, scheduler.DefaultRetryPolicy())

	if len(exec.order) != 3 || exec.order[0] != "A" || exec.order[1] != "B" || exec.order[2] != "C" {
		t.Fatalf("expected strict A,B,C order, got %v", exec.order)
	}
}

func TestFanOutFanIn(t *testing.T) {
	exec := newRecordingExecutor()
	runCtx := plan(
		[]models.Task{
			{ID: "A", Name: "A", Priority: 3}, {ID: "B", Name: "B", Priority: 3},
			{ID: "C", Name: "C", Priority: 3}, {ID: "D", Name: "D", Priority: 3},
			{ID: "E", Name: "E", Priority: 3},
		},
		map[string][]string{"B": {"A"}, "C": {"A"}, "D": {"A"}, "E": {"B", "C", "D"}},
		4,
	)
	b := runBackend(t, exec, runCtx, scheduler.DefaultRetryPolicy())

	completed, _ := b.GetCompletedTasks(context.Background())
	if len(completed) != 5 {
		t.Fatalf("expected all 5 tasks completed, got %v", completed)
	}
	if exec.order[len(exec.order)-1] != "E" {
		t.Fatalf("expected E to run last, got order %v", exec.order)
	}
}

func TestRetryThenSucceed(t *testing.T) {
	exec := newRecordingExecutor()
	exec.failN["A"] = 2
	retry := scheduler.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, ExponentialBackoff: false}

	runCtx := plan([]models.Task{{ID: "A", Name: "A", Priority: 3}}, nil, 1)
	b := runBackend(t, exec, runCtx, retry)

	completed, _ := b.GetCompletedTasks(context.Background())
	if !completed["A"] {
		t.Fatalf("expected A to eventually complete, attempts=%d", exec.attempts["A"])
	}
	if exec.attempts["A"] != 3 {
		t.Fatalf("expected exactly 3 attempts (2 failures + 1 success), got %d", exec.attempts["A"])
	}
}

func TestRetryExhaustedMarksTerminalAndSkipsDependents(t *testing.T) {
	exec := newRecordingExecutor()
	exec.failN["A"] = 100 // never succeeds
	retry := scheduler.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, ExponentialBackoff: false}

	runCtx := plan(
		[]models.Task{{ID: "A", Name: "A", Priority: 3}, {ID: "B", Name: "B", Priority: 3}},
		map[string][]string{"B": {"A"}},
		2,
	)
	b := runBackend(t, exec, runCtx, retry)

	st, _ := b.GetTaskStatus(context.Background(), "A")
	if st != models.StateTerminalFailed {
		t.Fatalf("expected A to be TERMINAL_FAILED, got %v", st)
	}
	if exec.attempts["A"] != 3 { // MaxRetries+1 attempts
		t.Fatalf("expected 3 total attempts, got %d", exec.attempts["A"])
	}

	stB, _ := b.GetTaskStatus(context.Background(), "B")
	if stB == models.StateCompleted {
		t.Fatalf("B should never have run since its dependency never completed")
	}
}

func TestBudgetCapsConcurrency(t *testing.T) {
	exec := newRecordingExecutor()
	exec.delay = 100 * time.Millisecond

	tasks := make([]models.Task, 10)
	for i := range tasks {
		tasks[i] = models.Task{ID: fmt.Sprintf("T%d", i), Name: fmt.Sprintf("T%d", i), Priority: 3}
	}
	runCtx := plan(tasks, nil, 3)

	start := time.Now()
	runBackend(t, exec, runCtx, scheduler.DefaultRetryPolicy())
	elapsed := time.Since(start)

	if exec.maxInProgress > 3 {
		t.Fatalf("expected at most 3 tasks in progress at once, observed %d", exec.maxInProgress)
	}
	if elapsed < 300*time.Millisecond {
		t.Fatalf("expected wall clock to reflect budget cap (>=300ms for 10 tasks/budget 3/100ms each), got %v", elapsed)
	}
}
