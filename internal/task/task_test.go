package task

import (
	"context"
	"testing"
	"time"
)

func TestExecuteSuccess(t *testing.T) {
	tsk := New(1, "echo", "echo hello")
	res := tsk.Execute(context.Background())
	if res.State != Success {
		t.Fatalf("expected Success, got %v", res.State)
	}
	if tsk.StartTime == nil || tsk.EndTime == nil {
		t.Fatalf("expected start/end time to be set")
	}
	if tsk.StartTime.After(*tsk.EndTime) {
		t.Fatalf("start_time must not be after end_time")
	}
}

func TestExecuteFailureNoRetries(t *testing.T) {
	tsk := New(1, "false", "false")
	tsk.MaxRetries = 0
	res := tsk.Execute(context.Background())
	if res.State != Failure {
		t.Fatalf("expected Failure, got %v", res.State)
	}
	if res.RetryCount != 1 {
		t.Fatalf("expected retry_count 1, got %d", res.RetryCount)
	}
}

func TestExecuteEmptyCommandFails(t *testing.T) {
	tsk := New(1, "empty", "   ")
	tsk.MaxRetries = 0
	res := tsk.Execute(context.Background())
	if res.State != Failure {
		t.Fatalf("expected Failure for empty command, got %v", res.State)
	}
}

func TestExecuteTimeout(t *testing.T) {
	tsk := New(1, "sleepy", "sleep 5")
	tsk.MaxRetries = 0
	tsk.TimeoutDuration = 200 * time.Millisecond
	start := time.Now()
	res := tsk.Execute(context.Background())
	elapsed := time.Since(start)
	if res.State != Failure {
		t.Fatalf("expected Failure on timeout, got %v", res.State)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestRetryCountInvariant(t *testing.T) {
	tsk := New(1, "false", "false")
	tsk.MaxRetries = 3
	tsk.TimeoutDuration = time.Second
	res := tsk.Execute(context.Background())
	if res.RetryCount > tsk.MaxRetries+1 {
		t.Fatalf("retry_count %d exceeds max_retries+1 (%d)", res.RetryCount, tsk.MaxRetries+1)
	}
}
