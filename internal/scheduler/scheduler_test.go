package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/willwooten/thermidor/internal/digraph"
	"github.com/willwooten/thermidor/internal/task"
	"github.com/willwooten/thermidor/internal/workflow"
)

func newTestScheduler() *Scheduler {
	return New(noop.NewMeterProvider().Meter("test"))
}

func diamond(commands [4]string) (*workflow.Workflow, [4]digraph.NodeIndex) {
	w := workflow.New()
	var idx [4]digraph.NodeIndex
	idx[0] = w.AddTask(task.New(1, "t1", commands[0]))
	idx[1] = w.AddTask(task.New(2, "t2", commands[1]))
	idx[2] = w.AddTask(task.New(3, "t3", commands[2]))
	idx[3] = w.AddTask(task.New(4, "t4", commands[3]))
	w.AddDependency(idx[0], idx[2])
	w.AddDependency(idx[1], idx[2])
	w.AddDependency(idx[2], idx[3])
	return w, idx
}

func TestDiamondAllSucceed(t *testing.T) {
	w, _ := diamond([4]string{"true", "true", "true", "true"})
	path := filepath.Join(t.TempDir(), "wf.json")

	if err := newTestScheduler().Run(context.Background(), w, path); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, tsk := range w.Tasks() {
		if tsk.State != task.Success {
			t.Fatalf("task %d expected Success, got %v", tsk.ID, tsk.State)
		}
	}
}

func TestFailurePropagation(t *testing.T) {
	w, _ := diamond([4]string{"false", "true", "true", "true"})
	for _, tsk := range w.Tasks() {
		tsk.MaxRetries = 0
	}
	path := filepath.Join(t.TempDir(), "wf.json")

	if err := newTestScheduler().Run(context.Background(), w, path); err != nil {
		t.Fatalf("Run: %v", err)
	}

	t1, _ := w.TaskByID(1)
	t2, _ := w.TaskByID(2)
	t3, _ := w.TaskByID(3)

	if t1.State != task.Failure {
		t.Fatalf("t1 expected Failure, got %v", t1.State)
	}
	if t2.State != task.Success {
		t.Fatalf("t2 expected Success, got %v", t2.State)
	}
	if t3.State == task.Success {
		t.Fatalf("t3 must not reach Success when a predecessor failed")
	}
}

func TestCycleDetected(t *testing.T) {
	w := workflow.New()
	a := w.AddTask(task.New(1, "a", "true"))
	b := w.AddTask(task.New(2, "b", "true"))
	w.AddDependency(a, b)
	w.AddDependency(b, a)

	path := filepath.Join(t.TempDir(), "wf.json")
	err := newTestScheduler().Run(context.Background(), w, path)
	if _, ok := err.(CycleDetected); !ok {
		t.Fatalf("expected CycleDetected, got %v", err)
	}

	for _, tsk := range w.Tasks() {
		if tsk.State != task.Pending {
			t.Fatalf("no task should leave Pending on cycle, got %v", tsk.State)
		}
	}
	if _, err := workflow.LoadFromJSON(path); err == nil {
		t.Fatalf("expected no checkpoint to be written on cycle")
	}
}

func TestTimeoutFailsTask(t *testing.T) {
	w := workflow.New()
	w.AddTask(task.New(1, "slow", "sleep 10"))
	for _, tsk := range w.Tasks() {
		tsk.MaxRetries = 0
		tsk.TimeoutDuration = 200 * time.Millisecond
	}
	path := filepath.Join(t.TempDir(), "wf.json")

	start := time.Now()
	if err := newTestScheduler().Run(context.Background(), w, path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	tsk, _ := w.TaskByID(1)
	if tsk.State != task.Failure {
		t.Fatalf("expected Failure on timeout, got %v", tsk.State)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestCrashResumeResetsToPending(t *testing.T) {
	w, _ := diamond([4]string{"true", "true", "true", "true"})
	path := filepath.Join(t.TempDir(), "wf.json")

	if err := newTestScheduler().Run(context.Background(), w, path); err != nil {
		t.Fatalf("first run: %v", err)
	}

	reloaded, err := workflow.LoadFromJSON(path)
	if err != nil {
		t.Fatalf("LoadFromJSON: %v", err)
	}
	if !reloaded.Resumed {
		t.Fatalf("expected Resumed true after reload")
	}

	secondRunStart := time.Now()
	if err := newTestScheduler().Run(context.Background(), reloaded, path); err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, tsk := range reloaded.Tasks() {
		if tsk.State != task.Success {
			t.Fatalf("task %d expected Success after re-run, got %v", tsk.ID, tsk.State)
		}
		if tsk.StartTime == nil || tsk.StartTime.Before(secondRunStart) {
			t.Fatalf("task %d expected fresh StartTime after re-run", tsk.ID)
		}
	}
}

func TestNoProgressTerminatesLoop(t *testing.T) {
	w := workflow.New()
	w.AddTask(task.New(1, "solo", "true"))
	path := filepath.Join(t.TempDir(), "wf.json")

	done := make(chan error, 1)
	go func() { done <- newTestScheduler().Run(context.Background(), w, path) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not terminate")
	}
}
