package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/willwooten/thermidor/internal/registry"
	"github.com/willwooten/thermidor/internal/task"
	"github.com/willwooten/thermidor/internal/workflow"
)

type handlers struct {
	reg *registry.Registry
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func notFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": message})
}

func parseWorkflowID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "wf"))
	return id, err == nil
}

// listAllTasks implements GET /workflows: a flat array of
// {workflow_id, task_id, name, state} across every workflow.
func (h *handlers) listAllTasks(w http.ResponseWriter, r *http.Request) {
	type row struct {
		WorkflowID int    `json:"workflow_id"`
		TaskID     int    `json:"task_id"`
		Name       string `json:"name"`
		State      string `json:"state"`
	}

	var rows []row
	err := h.reg.EachSnapshot(func(workflowID int, _ string, wf *workflow.Workflow) {
		for _, t := range wf.Tasks() {
			rows = append(rows, row{
				WorkflowID: workflowID,
				TaskID:     t.ID,
				Name:       t.Name,
				State:      t.State.String(),
			})
		}
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// getTask implements GET /workflow/:wf/task/:id.
func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	workflowID, ok := parseWorkflowID(r)
	if !ok {
		notFound(w, "workflow not found")
		return
	}
	taskID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		notFound(w, "task not found")
		return
	}

	wf, ok, err := h.reg.Snapshot(workflowID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		notFound(w, "workflow not found")
		return
	}

	t, ok := wf.TaskByID(taskID)
	if !ok {
		notFound(w, "task not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": workflowID,
		"task_id":     t.ID,
		"name":        t.Name,
		"command":     t.Command,
		"state":       t.State.String(),
	})
}

// getStatus implements GET /workflow/:wf/status.
func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	workflowID, ok := parseWorkflowID(r)
	if !ok {
		notFound(w, "workflow not found")
		return
	}

	wf, ok, err := h.reg.Snapshot(workflowID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		notFound(w, "workflow not found")
		return
	}

	states := make([]string, 0, len(wf.Tasks()))
	allSuccess := true
	anyFailure := false
	for _, t := range wf.Tasks() {
		states = append(states, t.State.String())
		if t.State != task.Success {
			allSuccess = false
		}
		if t.State == task.Failure {
			anyFailure = true
		}
	}

	status := "In Progress"
	switch {
	case allSuccess:
		status = "Completed"
	case anyFailure:
		status = "Failed"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": workflowID,
		"status":      status,
		"tasks":       states,
	})
}

// getGraph implements GET /workflow/graph: DAG topology for every
// workflow, across all workflows in one response.
func (h *handlers) getGraph(w http.ResponseWriter, r *http.Request) {
	type node struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	type edge struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	type wfGraph struct {
		WorkflowID int    `json:"workflow_id"`
		Nodes      []node `json:"nodes"`
		Edges      []edge `json:"edges"`
	}

	var graphs []wfGraph
	err := h.reg.EachSnapshot(func(workflowID int, _ string, wf *workflow.Workflow) {
		g := wfGraph{WorkflowID: workflowID, Nodes: []node{}, Edges: []edge{}}
		for _, t := range wf.Tasks() {
			g.Nodes = append(g.Nodes, node{ID: t.ID, Name: t.Name})
		}
		for _, e := range wf.Graph.Edges {
			fromTask, _ := wf.Graph.Node(e.From)
			toTask, _ := wf.Graph.Node(e.To)
			if fromTask == nil || toTask == nil {
				continue
			}
			g.Edges = append(g.Edges, edge{From: fromTask.ID, To: toTask.ID})
		}
		graphs = append(graphs, g)
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if graphs == nil {
		graphs = []wfGraph{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": graphs})
}

// getTimeline implements GET /workflow/:wf/timeline.
func (h *handlers) getTimeline(w http.ResponseWriter, r *http.Request) {
	workflowID, ok := parseWorkflowID(r)
	if !ok {
		notFound(w, "workflow not found")
		return
	}

	wf, ok, err := h.reg.Snapshot(workflowID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		notFound(w, "workflow not found")
		return
	}

	type entry struct {
		TaskID          int      `json:"task_id"`
		Name            string   `json:"name"`
		StartTime       *string  `json:"start_time"`
		EndTime         *string  `json:"end_time"`
		DurationSeconds *float64 `json:"duration_seconds"`
	}

	timeline := make([]entry, 0, len(wf.Tasks()))
	for _, t := range wf.Tasks() {
		e := entry{TaskID: t.ID, Name: t.Name}
		if t.StartTime != nil {
			s := t.StartTime.Format("2006-01-02T15:04:05.999999999Z07:00")
			e.StartTime = &s
		}
		if t.EndTime != nil {
			s := t.EndTime.Format("2006-01-02T15:04:05.999999999Z07:00")
			e.EndTime = &s
		}
		if t.StartTime != nil && t.EndTime != nil {
			d := t.EndTime.Sub(*t.StartTime).Seconds()
			e.DurationSeconds = &d
		}
		timeline = append(timeline, e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": workflowID,
		"timeline":    timeline,
	})
}
