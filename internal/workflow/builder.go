package workflow

import (
	"log/slog"

	"github.com/willwooten/thermidor/internal/task"
)

// WorkflowBuilder assembles a Workflow by task name rather than by node
// handle, matching original_source/src/workflow_builder.rs's fluent API:
// callers add tasks, then wire dependencies by the names they just gave
// those tasks.
type WorkflowBuilder struct {
	w         *Workflow
	nameToTsk map[string]*task.Task
}

// NewBuilder returns an empty WorkflowBuilder.
func NewBuilder() *WorkflowBuilder {
	return &WorkflowBuilder{
		w:         New(),
		nameToTsk: make(map[string]*task.Task),
	}
}

// AddTask adds a task with the given id, name, and command, and returns the
// builder for chaining. A duplicate name overwrites the lookup used by
// AddDependency but both tasks remain in the graph.
func (b *WorkflowBuilder) AddTask(id int, name, command string) *WorkflowBuilder {
	t := task.New(id, name, command)
	b.w.AddTask(t)
	b.nameToTsk[name] = t
	return b
}

// AddDependency wires fromName -> toName by looking up the tasks most
// recently added under those names. If either name is unknown, the
// dependency is logged and silently dropped rather than the builder
// returning an error: a builder is typically constructed from a static,
// hand-authored task list where an unknown name is an authoring mistake to
// surface in logs, not a runtime fault to propagate.
func (b *WorkflowBuilder) AddDependency(fromName, toName string) *WorkflowBuilder {
	from, ok := b.nameToTsk[fromName]
	if !ok {
		slog.Warn("workflow builder: unknown dependency source, skipping", "from", fromName, "to", toName)
		return b
	}
	to, ok := b.nameToTsk[toName]
	if !ok {
		slog.Warn("workflow builder: unknown dependency target, skipping", "from", fromName, "to", toName)
		return b
	}

	fromHandle, ok := b.w.handleByID(from.ID)
	if !ok {
		slog.Warn("workflow builder: source task missing from graph, skipping", "from", fromName)
		return b
	}
	toHandle, ok := b.w.handleByID(to.ID)
	if !ok {
		slog.Warn("workflow builder: target task missing from graph, skipping", "to", toName)
		return b
	}

	b.w.AddDependency(fromHandle, toHandle)
	return b
}

// GetWorkflow returns a deep copy of the built Workflow, matching
// original_source/src/workflow_builder.rs's get_workflow (which returns
// workflow.clone()). The builder keeps its own graph, so further
// AddTask/AddDependency calls extend what the builder holds, not what a
// caller has already fetched.
func (b *WorkflowBuilder) GetWorkflow() *Workflow {
	clone, err := b.w.Clone()
	if err != nil {
		slog.Error("workflow builder: clone failed, returning builder's own graph", "error", err)
		return b.w
	}
	return clone
}
