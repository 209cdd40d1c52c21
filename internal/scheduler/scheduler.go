// Package scheduler drives a single workflow to quiescence: topological
// ordering, cycle detection, concurrent dispatch of ready tasks within a
// wave, completion collection, and checkpointing, grounded on the
// wave/barrier shape of the teacher's DAGEngine.executeDAG
// (services/orchestrator/dag_engine.go) but rebuilt around the exact
// pass-by-pass algorithm and Skipped-then-reconsidered semantics the
// specification calls for rather than the teacher's channel-fed worker
// pool with hard-fail-on-first-failure.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/willwooten/thermidor/internal/digraph"
	"github.com/willwooten/thermidor/internal/task"
	"github.com/willwooten/thermidor/internal/workflow"
)

// Scheduler drives Workflows to completion and reports its own metrics.
type Scheduler struct {
	tracer trace.Tracer

	wavesRun        metric.Int64Counter
	tasksRun        metric.Int64Counter
	cyclesFound     metric.Int64Counter
	checkpointFails metric.Int64Counter
}

// New constructs a Scheduler whose metrics are registered against meter.
// meter may be the OpenTelemetry no-op meter in tests.
func New(meter metric.Meter) *Scheduler {
	wavesRun, _ := meter.Int64Counter("thermidor_scheduler_waves_total")
	tasksRun, _ := meter.Int64Counter("thermidor_scheduler_tasks_dispatched_total")
	cyclesFound, _ := meter.Int64Counter("thermidor_scheduler_cycles_detected_total")
	checkpointFails, _ := meter.Int64Counter("thermidor_scheduler_checkpoint_failures_total")

	return &Scheduler{
		tracer:          otel.Tracer("thermidor-scheduler"),
		wavesRun:        wavesRun,
		tasksRun:        tasksRun,
		cyclesFound:     cyclesFound,
		checkpointFails: checkpointFails,
	}
}

// Option configures a single Run call.
type Option func(*runConfig)

type runConfig struct {
	onCheckpoint func(*workflow.Workflow)
}

// WithOnCheckpoint registers a callback invoked after every successful
// checkpoint write, with the same exclusive access to w that Run itself
// holds at that point. The registry uses this to refresh its read-side
// snapshot cache immediately after each wave, rather than making HTTP
// reads wait on the workflow's own guard for the entire run (see the
// snapshot-on-read design note in DESIGN.md).
func WithOnCheckpoint(fn func(*workflow.Workflow)) Option {
	return func(c *runConfig) { c.onCheckpoint = fn }
}

// Run drives w to quiescence, persisting a checkpoint to savePath after
// every wave. The caller must hold exclusive access to w for the duration
// of Run; Run itself does not acquire any lock, leaving lock discipline to
// the registry that owns w (see internal/registry).
//
// Run resets every task to Pending on entry: a resumed checkpoint is a
// starting point for a fresh execution, not a resumption point mid-run (see
// the resumed-semantics decision recorded in DESIGN.md).
func (s *Scheduler) Run(ctx context.Context, w *workflow.Workflow, savePath string, opts ...Option) error {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	runID := uuid.New().String()
	ctx, span := s.tracer.Start(ctx, "scheduler.run", trace.WithAttributes(attribute.String("scheduler.run_id", runID)))
	defer span.End()
	slog.Info("scheduler: run starting", "run_id", runID, "save_path", savePath)

	for _, t := range w.Tasks() {
		t.State = task.Pending
		t.RetryCount = 0
		t.StartTime = nil
		t.EndTime = nil
	}

	completed := make(map[digraph.NodeIndex]bool)

	for {
		order, err := w.Graph.TopoSort()
		if err != nil {
			s.cyclesFound.Add(ctx, 1)
			span.RecordError(err)
			return CycleDetected{}
		}

		dispatched, err := s.runWave(ctx, w, order, completed)
		if err != nil {
			return err
		}

		if err := w.SaveToJSON(savePath); err != nil {
			s.checkpointFails.Add(ctx, 1)
			slog.Error("scheduler: checkpoint write failed, continuing with stale on-disk state",
				"error", checkpointWriteFailure{cause: err}, "save_path", savePath, "run_id", runID)
		} else if cfg.onCheckpoint != nil {
			cfg.onCheckpoint(w)
		}
		s.wavesRun.Add(ctx, 1)

		if dispatched == 0 {
			slog.Info("scheduler: run quiesced", "run_id", runID)
			return nil
		}
	}
}

// waveResult is the outcome of one dispatched task within a wave.
type waveResult struct {
	idx   digraph.NodeIndex
	state task.State
}

// runWave evaluates every node in topological order, dispatches every node
// whose predecessors are all in completed, marks the rest Skipped, then
// awaits all dispatched tasks before returning. It returns the number of
// tasks dispatched this wave.
func (s *Scheduler) runWave(ctx context.Context, w *workflow.Workflow, order []digraph.NodeIndex, completed map[digraph.NodeIndex]bool) (int, error) {
	var toDispatch []digraph.NodeIndex

	for _, idx := range order {
		t, err := w.Graph.Node(idx)
		if err != nil {
			return 0, err
		}

		if t.State != task.Pending && t.State != task.Skipped {
			continue
		}

		ready := true
		for _, pred := range w.Graph.Predecessors(idx) {
			if !completed[pred] {
				ready = false
				break
			}
		}

		if ready {
			toDispatch = append(toDispatch, idx)
		} else {
			t.State = task.Skipped
		}
	}

	if len(toDispatch) == 0 {
		return 0, nil
	}

	results := make(chan waveResult, len(toDispatch))
	var wg sync.WaitGroup

	for _, idx := range toDispatch {
		idx := idx
		t, err := w.Graph.Node(idx)
		if err != nil {
			return 0, err
		}

		wg.Add(1)
		s.tasksRun.Add(ctx, 1, metric.WithAttributes(attribute.Int("task.id", t.ID)))
		go func() {
			defer wg.Done()
			res := t.Execute(ctx)
			results <- waveResult{idx: idx, state: res.State}
		}()
	}

	wg.Wait()
	close(results)

	for r := range results {
		completed[r.idx] = true
	}

	return len(toDispatch), nil
}
