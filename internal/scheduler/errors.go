package scheduler

import "fmt"

// CycleDetected is returned by Run when the workflow's graph is not
// acyclic. It is the only error that escapes Run: every other failure is
// contained to the task that produced it.
type CycleDetected struct{}

func (CycleDetected) Error() string { return "scheduler: cycle detected in workflow graph" }

// checkpointWriteFailure wraps an error returned by workflow.SaveToJSON. It
// is logged, never returned, so it has no exported Error-satisfying type;
// callers only ever see it via the log line in Run.
type checkpointWriteFailure struct {
	cause error
}

func (e checkpointWriteFailure) Error() string {
	return fmt.Sprintf("scheduler: checkpoint write failed: %v", e.cause)
}
