package workflow

import "testing"

func TestBuilderFluentConstruction(t *testing.T) {
	w := NewBuilder().
		AddTask(1, "extract", "true").
		AddTask(2, "transform", "true").
		AddTask(3, "load", "true").
		AddDependency("extract", "transform").
		AddDependency("transform", "load").
		GetWorkflow()

	if len(w.Tasks()) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(w.Tasks()))
	}

	loadTask, ok := w.TaskByID(3)
	if !ok {
		t.Fatalf("expected to find load task")
	}
	handle, ok := w.handleByID(loadTask.ID)
	if !ok {
		t.Fatalf("expected handle for load task")
	}
	preds := w.Predecessors(handle)
	if len(preds) != 1 || preds[0].Name != "transform" {
		t.Fatalf("expected load to depend on transform, got %+v", preds)
	}
}

func TestGetWorkflowReturnsIndependentCopy(t *testing.T) {
	b := NewBuilder().AddTask(1, "extract", "true")
	first := b.GetWorkflow()

	b.AddTask(2, "load", "true")
	second := b.GetWorkflow()

	if len(first.Tasks()) != 1 {
		t.Fatalf("expected earlier fetch to be unaffected by later AddTask, got %d tasks", len(first.Tasks()))
	}
	if len(second.Tasks()) != 2 {
		t.Fatalf("expected later fetch to see both tasks, got %d", len(second.Tasks()))
	}

	firstTask, _ := first.TaskByID(1)
	firstTask.Name = "mutated"
	secondTask, _ := second.TaskByID(1)
	if secondTask.Name == "mutated" {
		t.Fatalf("expected mutating one fetched copy to leave another untouched")
	}
}

func TestBuilderUnknownDependencyNameIsNoOp(t *testing.T) {
	w := NewBuilder().
		AddTask(1, "extract", "true").
		AddDependency("extract", "does-not-exist").
		AddDependency("also-missing", "extract").
		GetWorkflow()

	if len(w.Tasks()) != 1 {
		t.Fatalf("expected 1 task, got %d", len(w.Tasks()))
	}
	handle, _ := w.handleByID(1)
	if preds := w.Predecessors(handle); len(preds) != 0 {
		t.Fatalf("expected no predecessors, got %+v", preds)
	}
}
