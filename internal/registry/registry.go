// Package registry holds the process-wide collection of workflows,
// bootstraps each from its JSON checkpoint or a hard-coded default, and
// spawns one scheduler per workflow, grounded on
// original_source/src/workflow_initializer.rs's load-or-build bootstrap
// and the spec's exclusive-guard-per-workflow ownership model.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/willwooten/thermidor/internal/scheduler"
	"github.com/willwooten/thermidor/internal/workflow"
)

// Entry is one workflow under the registry's management: its stable name,
// on-disk checkpoint path, and the exclusive guard a Scheduler run holds
// for the entirety of Run.
type Entry struct {
	Name     string
	SavePath string

	mu sync.Mutex
	wf *workflow.Workflow
}

// WithWorkflow runs fn with exclusive access to the entry's live workflow.
// HTTP handlers must never call this directly (it would block on an
// in-flight run); they read from the Registry's SnapshotStore instead.
func (e *Entry) WithWorkflow(fn func(*workflow.Workflow)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.wf)
}

// Registry is an ordered collection of workflow entries. A workflow's
// position in Entries is its public workflow_id, matching the
// specification's HTTP contract.
type Registry struct {
	mu       sync.RWMutex
	entries  []*Entry
	snapshot *SnapshotStore
}

// New constructs an empty registry backed by the given snapshot store.
func New(snapshot *SnapshotStore) *Registry {
	return &Registry{snapshot: snapshot}
}

// Definition describes one workflow to bootstrap: its stable name, from
// which InitializeWorkflows derives the checkpoint file
// (workflowDir/<Name>.json) it is loaded from or saved to, and a setup
// function invoked only when no checkpoint can be loaded.
type Definition struct {
	Name  string
	Setup func(*workflow.WorkflowBuilder)
}

// DefaultDefinitions mirrors original_source/src/workflow_initializer.rs's
// example workflow: a diamond of four quick tasks feeding a fifth,
// slower one, useful both as a real default and as a smoke test fixture.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name: "workflow1",
			Setup: func(b *workflow.WorkflowBuilder) {
				b.AddTask(1, "Task 1", "echo Hello from Task 1").
					AddTask(2, "Task 2", "echo Hello from Task 2").
					AddTask(3, "Task 3", "echo Hello from Task 3").
					AddTask(4, "Task 4", "echo Hello from Task 4").
					AddTask(5, "Long Task", "sleep 30").
					AddDependency("Task 1", "Task 3").
					AddDependency("Task 2", "Task 3").
					AddDependency("Task 3", "Task 4").
					AddDependency("Task 4", "Long Task")
			},
		},
	}
}

// InitializeWorkflows builds one Entry per definition: loading its JSON
// checkpoint from workflowDir/<name>.json if present, otherwise
// constructing it fresh via Setup. It also seeds the snapshot cache so a
// read arriving before the first scheduler pass still sees something.
func InitializeWorkflows(workflowDir string, defs []Definition, snapshot *SnapshotStore) (*Registry, error) {
	reg := New(snapshot)

	for _, def := range defs {
		savePath := filepath.Join(workflowDir, def.Name+".json")

		w, err := workflow.LoadFromJSON(savePath)
		if err != nil {
			slog.Info("registry: no checkpoint found, building default workflow", "name", def.Name, "save_path", savePath)
			builder := workflow.NewBuilder()
			def.Setup(builder)
			w = builder.GetWorkflow()
		} else {
			slog.Info("registry: loaded workflow from checkpoint", "name", def.Name, "save_path", savePath)
		}

		entry := &Entry{Name: def.Name, SavePath: savePath, wf: w}
		reg.entries = append(reg.entries, entry)

		if snapshot != nil {
			if err := snapshot.Put(def.Name, w); err != nil {
				slog.Warn("registry: failed to seed snapshot", "name", def.Name, "error", err)
			}
		}
	}

	return reg, nil
}

// StartWorkflows spawns one independent goroutine per entry, each running
// sched.Run under that entry's exclusive guard, refreshing the snapshot
// cache after every checkpoint. It returns immediately; callers that need
// to wait for all runs to finish should track the returned WaitGroup.
func (r *Registry) StartWorkflows(ctx context.Context, sched *scheduler.Scheduler) *sync.WaitGroup {
	var wg sync.WaitGroup

	r.mu.RLock()
	entries := append([]*Entry(nil), r.entries...)
	r.mu.RUnlock()

	for _, entry := range entries {
		entry := entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry.mu.Lock()
			defer entry.mu.Unlock()

			var opts []scheduler.Option
			if r.snapshot != nil {
				opts = append(opts, scheduler.WithOnCheckpoint(func(w *workflow.Workflow) {
					if err := r.snapshot.Put(entry.Name, w); err != nil {
						slog.Warn("registry: failed to refresh snapshot", "name", entry.Name, "error", err)
					}
				}))
			}

			if err := sched.Run(ctx, entry.wf, entry.SavePath, opts...); err != nil {
				slog.Error("registry: workflow run failed", "name", entry.Name, "error", err)
			}
		}()
	}

	return &wg
}

// Len returns the number of registered workflows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// EntryAt returns the entry at workflowID (its list position), or false if
// out of range.
func (r *Registry) EntryAt(workflowID int) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if workflowID < 0 || workflowID >= len(r.entries) {
		return nil, false
	}
	return r.entries[workflowID], true
}

// Snapshot returns the last checkpointed workflow for workflowID from the
// snapshot cache, never touching the entry's live (and possibly locked)
// workflow.
func (r *Registry) Snapshot(workflowID int) (*workflow.Workflow, bool, error) {
	entry, ok := r.EntryAt(workflowID)
	if !ok {
		return nil, false, nil
	}
	w, ok, err := r.snapshot.Get(entry.Name)
	if err != nil {
		return nil, false, fmt.Errorf("registry: snapshot lookup for workflow %d: %w", workflowID, err)
	}
	return w, ok, nil
}

// EachSnapshot calls fn for every workflow_id/snapshot pair currently
// available in the cache, skipping any workflow with no snapshot yet.
func (r *Registry) EachSnapshot(fn func(workflowID int, name string, w *workflow.Workflow)) error {
	r.mu.RLock()
	entries := append([]*Entry(nil), r.entries...)
	r.mu.RUnlock()

	for id, entry := range entries {
		w, ok, err := r.snapshot.Get(entry.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fn(id, entry.Name, w)
	}
	return nil
}
