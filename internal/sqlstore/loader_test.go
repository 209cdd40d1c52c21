package sqlstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLoadWorkflow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT name FROM workflows WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("etl"))

	mock.ExpectQuery(`SELECT id, task_name, command FROM tasks WHERE workflow_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_name", "command"}).
			AddRow(1, "extract", "true").
			AddRow(2, "transform", "true"))

	mock.ExpectQuery(`SELECT from_task_id, to_task_id FROM dependencies WHERE workflow_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"from_task_id", "to_task_id"}).
			AddRow(1, 2))

	w, err := LoadWorkflow(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("LoadWorkflow: %v", err)
	}

	if len(w.Tasks()) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(w.Tasks()))
	}

	transform, ok := w.TaskByID(2)
	if !ok {
		t.Fatalf("expected to find transform task")
	}
	if transform.Name != "transform" {
		t.Fatalf("unexpected task name %q", transform.Name)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoadWorkflowUnknownDependencyFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT name FROM workflows WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("etl"))

	mock.ExpectQuery(`SELECT id, task_name, command FROM tasks WHERE workflow_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_name", "command"}).
			AddRow(1, "extract", "true"))

	mock.ExpectQuery(`SELECT from_task_id, to_task_id FROM dependencies WHERE workflow_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"from_task_id", "to_task_id"}).
			AddRow(1, 999))

	if _, err := LoadWorkflow(context.Background(), db, 1); err == nil {
		t.Fatalf("expected error for unknown dependency target")
	}
}

func TestRunMigrationsSplitsOnSemicolons(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id int); \n\n ; CREATE TABLE b (id int);")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
}
