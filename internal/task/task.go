// Package task implements the single executable unit of a workflow: a
// shell command with a retry/timeout policy, mirroring the attempt loop the
// teacher's DAGEngine.executeTask (services/orchestrator/dag_engine.go)
// drives per node, but with the fixed 2^retry_count backoff and
// exhausted-retries semantics spec'd for this system rather than the
// teacher's jittered multiplier backoff.
package task

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxRetries is applied when a Task is constructed without an
	// explicit retry budget: up to 6 attempts total.
	DefaultMaxRetries = 5
	// DefaultTimeout is applied when a Task is constructed without an
	// explicit per-attempt timeout.
	DefaultTimeout = 24 * time.Hour
)

// Task is a single executable unit within a Workflow.
type Task struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Command         string        `json:"command"`
	State           State         `json:"state"`
	MaxRetries      int           `json:"max_retries"`
	RetryCount      int           `json:"retry_count"`
	TimeoutDuration time.Duration `json:"timeout_duration"`
	StartTime       *time.Time    `json:"start_time,omitempty"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
}

// New constructs a Task in the Pending state with default retry/timeout
// policy, matching original_source/src/task.rs's Task::new plus the
// policy defaults spec'd in section 3 of the specification.
func New(id int, name, command string) *Task {
	return &Task{
		ID:              id,
		Name:            name,
		Command:         command,
		State:           Pending,
		MaxRetries:      DefaultMaxRetries,
		TimeoutDuration: DefaultTimeout,
	}
}

var tracer = otel.Tracer("thermidor-task")

// Result is the outcome of a single Execute call.
type Result struct {
	State      State
	RetryCount int
}

// Execute runs the task's command, retrying with exponential backoff on
// failure until MaxRetries is exhausted or an attempt succeeds. It mutates
// t.State, t.RetryCount, t.StartTime, and t.EndTime in place and returns the
// final Result. Execute never panics on a malformed command; an empty
// command after trimming is treated as a failed attempt.
func (t *Task) Execute(ctx context.Context) Result {
	ctx, span := tracer.Start(ctx, "task.execute",
		trace.WithAttributes(
			attribute.Int("task.id", t.ID),
			attribute.String("task.name", t.Name),
		),
	)
	defer span.End()

	t.State = Running
	now := time.Now()
	t.StartTime = &now

	for {
		ok := t.attempt(ctx)
		if ok {
			t.State = Success
			end := time.Now()
			t.EndTime = &end
			slog.Info("task succeeded", "task_id", t.ID, "task_name", t.Name, "retry_count", t.RetryCount)
			return Result{State: t.State, RetryCount: t.RetryCount}
		}

		t.RetryCount++
		if t.RetryCount > t.MaxRetries {
			t.State = Failure
			end := time.Now()
			t.EndTime = &end
			slog.Error("task failed", "task_id", t.ID, "task_name", t.Name, "retry_count", t.RetryCount)
			return Result{State: t.State, RetryCount: t.RetryCount}
		}

		backoff := time.Duration(1<<uint(t.RetryCount)) * time.Second
		slog.Warn("task attempt failed, backing off", "task_id", t.ID, "task_name", t.Name, "retry_count", t.RetryCount, "backoff", backoff)
		select {
		case <-ctx.Done():
			t.State = Failure
			end := time.Now()
			t.EndTime = &end
			return Result{State: t.State, RetryCount: t.RetryCount}
		case <-time.After(backoff):
		}
	}
}

// attempt runs one subprocess invocation of t.Command, bounded by
// t.TimeoutDuration, and reports whether it exited zero.
func (t *Task) attempt(ctx context.Context) bool {
	parts := strings.Fields(t.Command)
	if len(parts) == 0 {
		slog.Error("task has empty command", "task_id", t.ID, "task_name", t.Name)
		return false
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.TimeoutDuration)
	defer cancel()

	cmd := exec.CommandContext(attemptCtx, parts[0], parts[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if stdout.Len() > 0 {
		slog.Info(fmt.Sprintf("task %d stdout", t.ID), "output", stdout.String())
	}
	if stderr.Len() > 0 {
		slog.Info(fmt.Sprintf("task %d stderr", t.ID), "output", stderr.String())
	}

	if attemptCtx.Err() != nil {
		slog.Error("task attempt timed out", "task_id", t.ID, "task_name", t.Name, "timeout", t.TimeoutDuration)
		return false
	}
	if err != nil {
		slog.Error("task attempt failed", "task_id", t.ID, "task_name", t.Name, "error", err)
		return false
	}
	return true
}
