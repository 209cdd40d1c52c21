// Package workflow implements the DAG of tasks a Scheduler drives to
// completion: graph mutation, JSON checkpointing, and dependency lookup,
// grounded on original_source/src/workflow.rs (petgraph-backed) and
// reshaped onto internal/digraph.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/willwooten/thermidor/internal/digraph"
	"github.com/willwooten/thermidor/internal/task"
)

// NodeHandle is an opaque handle into a Workflow's graph, returned by
// AddTask. It is only valid for the Workflow that produced it.
type NodeHandle = digraph.NodeIndex

// Workflow is a DAG of tasks plus the bookkeeping needed to checkpoint and
// rehydrate it.
type Workflow struct {
	Graph   *digraph.Graph[*task.Task] `json:"graph"`
	Resumed bool                       `json:"resumed"`
}

// New returns an empty, non-resumed workflow.
func New() *Workflow {
	return &Workflow{Graph: digraph.New[*task.Task]()}
}

// AddTask appends t to the graph and returns its node handle.
func (w *Workflow) AddTask(t *task.Task) NodeHandle {
	return w.Graph.AddNode(t)
}

// AddDependency records that the task at `to` depends on the task at
// `from`: from must reach a terminal outcome (Success or Failure) before to
// may start; the Scheduler dispatches to after a failed from too. Acyclicity is not
// validated here; the Scheduler's topological sort is responsible for
// cycle detection at run time.
func (w *Workflow) AddDependency(from, to NodeHandle) {
	w.Graph.AddEdge(from, to)
}

// Tasks returns every task in the workflow in node-insertion order.
func (w *Workflow) Tasks() []*task.Task {
	return w.Graph.Nodes
}

// TaskByID returns the task with the given stable ID, or false if none
// exists. Callers must look tasks up by ID rather than by NodeHandle once a
// Workflow has crossed a save/load boundary (handles stay dense indices;
// only ID is guaranteed stable across processes).
func (w *Workflow) TaskByID(id int) (*task.Task, bool) {
	for _, t := range w.Graph.Nodes {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// handleByID resolves a stable task ID to its current NodeHandle.
func (w *Workflow) handleByID(id int) (NodeHandle, bool) {
	for i, t := range w.Graph.Nodes {
		if t.ID == id {
			return digraph.NodeIndex(i), true
		}
	}
	return 0, false
}

// Predecessors returns the direct dependency tasks of the task at handle.
func (w *Workflow) Predecessors(handle NodeHandle) []*task.Task {
	idxs := w.Graph.Predecessors(handle)
	preds := make([]*task.Task, 0, len(idxs))
	for _, idx := range idxs {
		t, err := w.Graph.Node(idx)
		if err == nil {
			preds = append(preds, t)
		}
	}
	return preds
}

// ErrUnknownTaskID is returned by the dynamic, ID-based mutation API when a
// referenced task ID does not exist in the workflow.
type ErrUnknownTaskID struct{ ID int }

func (e ErrUnknownTaskID) Error() string {
	return fmt.Sprintf("workflow: unknown task id %d", e.ID)
}

// AddTaskDynamically constructs a Task from primitive fields and adds it to
// the graph, for loaders (e.g. the SQL loader) that only have IDs, names,
// and commands on hand rather than a pre-built *task.Task.
func (w *Workflow) AddTaskDynamically(id int, name, command string) NodeHandle {
	return w.AddTask(task.New(id, name, command))
}

// AddDependencyDynamically resolves idFrom and idTo to node handles and adds
// the edge idFrom -> idTo. It returns ErrUnknownTaskID if either id is not
// present in the workflow; the workflow is left unchanged in that case.
func (w *Workflow) AddDependencyDynamically(idFrom, idTo int) error {
	from, ok := w.handleByID(idFrom)
	if !ok {
		return ErrUnknownTaskID{ID: idFrom}
	}
	to, ok := w.handleByID(idTo)
	if !ok {
		return ErrUnknownTaskID{ID: idTo}
	}
	w.AddDependency(from, to)
	return nil
}

// Clone returns a deep copy of w: a distinct Graph with distinct Task
// pointers, sharing no memory with w. Mutating the clone (including via the
// Scheduler) never affects w or vice versa.
func (w *Workflow) Clone() (*Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("workflow: clone marshal: %w", err)
	}
	clone := New()
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, fmt.Errorf("workflow: clone unmarshal: %w", err)
	}
	clone.Resumed = w.Resumed
	return clone, nil
}

// SaveToJSON serializes the workflow to pretty JSON at path, overwriting
// any existing file. It writes to a temporary file in the same directory
// first and renames into place, so a reader never observes a partially
// written checkpoint.
func (w *Workflow) SaveToJSON(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("workflow: create checkpoint dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("workflow: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("workflow: write temp checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("workflow: rename checkpoint into place: %w", err)
	}
	return nil
}

// LoadFromJSON deserializes a workflow previously written by SaveToJSON.
// The returned workflow always has Resumed set to true, even if the
// on-disk copy had it false, since loading from a checkpoint is itself
// what "resumed" means.
func LoadFromJSON(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	w := New()
	if err := json.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("workflow: unmarshal: %w", err)
	}
	w.Resumed = true
	return w, nil
}
