package sqlstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/willwooten/thermidor/internal/workflow"
)

// LoadWorkflow hydrates a Workflow from the workflows/tasks/dependencies
// tables: one row lookup for the workflow, then every task row, then every
// dependency row, resolving each dependency's from_task_id/to_task_id pair
// to graph edges via the dynamic-add lookup (see DESIGN.md for why this
// package uses from_task_id/to_task_id rather than the from_task_idx
// column original_source also carried).
func LoadWorkflow(ctx context.Context, db *sql.DB, workflowID int64) (*workflow.Workflow, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM workflows WHERE id = $1`, workflowID).Scan(&name)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlstore: load workflow %d", workflowID)
	}

	w := workflow.New()

	taskRows, err := db.QueryContext(ctx, `SELECT id, task_name, command FROM tasks WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore: query tasks")
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var id int
		var taskName, command string
		if err := taskRows.Scan(&id, &taskName, &command); err != nil {
			return nil, errors.Wrap(err, "sqlstore: scan task row")
		}
		w.AddTaskDynamically(id, taskName, command)
	}
	if err := taskRows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlstore: iterate task rows")
	}

	depRows, err := db.QueryContext(ctx, `SELECT from_task_id, to_task_id FROM dependencies WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore: query dependencies")
	}
	defer depRows.Close()

	for depRows.Next() {
		var fromID, toID int
		if err := depRows.Scan(&fromID, &toID); err != nil {
			return nil, errors.Wrap(err, "sqlstore: scan dependency row")
		}
		if err := w.AddDependencyDynamically(fromID, toID); err != nil {
			return nil, errors.Wrapf(err, "sqlstore: workflow %d dependency %d->%d", workflowID, fromID, toID)
		}
	}
	if err := depRows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlstore: iterate dependency rows")
	}

	return w, nil
}
