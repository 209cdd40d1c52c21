package workflow

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willwooten/thermidor/internal/task"
)

func buildDiamond() *Workflow {
	w := New()
	a := w.AddTask(task.New(1, "a", "true"))
	b := w.AddTask(task.New(2, "b", "true"))
	c := w.AddTask(task.New(3, "c", "true"))
	d := w.AddTask(task.New(4, "d", "true"))
	w.AddDependency(a, c)
	w.AddDependency(b, c)
	w.AddDependency(c, d)
	return w
}

func TestAddTaskAndDependency(t *testing.T) {
	w := buildDiamond()
	assert.Len(t, w.Tasks(), 4)

	_, ok := w.TaskByID(4)
	assert.True(t, ok, "expected to find task 4")

	preds := w.Predecessors(NodeHandle(3))
	require.Len(t, preds, 1)
	assert.Equal(t, 3, preds[0].ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	w := buildDiamond()
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	require.NoError(t, w.SaveToJSON(path))

	loaded, err := LoadFromJSON(path)
	require.NoError(t, err)

	assert.True(t, loaded.Resumed, "expected Resumed to be true after load")
	require.Len(t, loaded.Tasks(), len(w.Tasks()))

	for i, orig := range w.Tasks() {
		got := loaded.Tasks()[i]
		assert.Equal(t, orig.ID, got.ID)
		assert.Equal(t, orig.Name, got.Name)
		assert.Equal(t, orig.Command, got.Command)
	}

	dPreds := loaded.Predecessors(NodeHandle(3))
	require.Len(t, dPreds, 1)
	assert.Equal(t, 3, dPreds[0].ID)
}

func TestAddTaskDynamicallyAndDependency(t *testing.T) {
	w := New()
	w.AddTaskDynamically(1, "a", "true")
	w.AddTaskDynamically(2, "b", "true")

	require.NoError(t, w.AddDependencyDynamically(1, 2))

	err := w.AddDependencyDynamically(1, 999)
	require.Error(t, err)
	assert.IsType(t, ErrUnknownTaskID{}, err)

	assert.Error(t, w.AddDependencyDynamically(999, 2))
}

func TestLoadFromJSONMissingFile(t *testing.T) {
	_, err := LoadFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
