package backlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentscaffold/scaffold/internal/model"
)

func writeTask(t *testing.T, a *FileAdapter, spec model.TaskSpec) {
	t.Helper()
	require.NoError(t, a.writeTask(spec))
}

func TestFileAdapterGetTaskNotFound(t *testing.T) {
	a, err := NewFileAdapter(t.TempDir())
	require.NoError(t, err)

	_, err = a.GetTask(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestFileAdapterRoundTrip(t *testing.T) {
	a, err := NewFileAdapter(t.TempDir())
	require.NoError(t, err)

	spec := model.TaskSpec{
		TaskID:             "task-1",
		Title:              "BUILD: widget",
		Status:             model.StatusToDo,
		Priority:           model.PriorityHigh,
		Labels:             []string{"build"},
		AcceptanceCriteria: []string{"widget works"},
	}
	writeTask(t, a, spec)

	got, err := a.GetTask(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, spec, got)
}

func TestFileAdapterUpdateStatusNoOpWhenUnchanged(t *testing.T) {
	a, err := NewFileAdapter(t.TempDir())
	require.NoError(t, err)
	writeTask(t, a, model.TaskSpec{TaskID: "t1", Status: model.StatusToDo})

	require.NoError(t, a.UpdateStatus(context.Background(), "t1", model.StatusToDo))

	got, err := a.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, model.StatusToDo, got.Status)
}

func TestFileAdapterAppendNotesIsNotIdempotent(t *testing.T) {
	a, err := NewFileAdapter(t.TempDir())
	require.NoError(t, err)
	writeTask(t, a, model.TaskSpec{TaskID: "t1", Status: model.StatusToDo})

	require.NoError(t, a.AppendNotes(context.Background(), "t1", "note A"))
	require.NoError(t, a.AppendNotes(context.Background(), "t1", "note A"))

	got, err := a.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "note A\nnote A", got.ImplementationNotes)
}

func TestFileAdapterListTasksDependenciesSatisfied(t *testing.T) {
	a, err := NewFileAdapter(t.TempDir())
	require.NoError(t, err)

	writeTask(t, a, model.TaskSpec{TaskID: "dep-1", Status: model.StatusDone})
	writeTask(t, a, model.TaskSpec{TaskID: "task-2", Status: model.StatusToDo, Dependencies: []string{"dep-1"}})
	writeTask(t, a, model.TaskSpec{TaskID: "task-3", Status: model.StatusToDo, Dependencies: []string{"missing-dep"}})

	out, err := a.ListTasks(context.Background(), ListFilter{Status: model.StatusToDo, DependenciesSatisfied: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "task-2", out[0].TaskID)
}

func TestFileAdapterListTasksSkipsMalformedRecords(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileAdapter(dir)
	require.NoError(t, err)

	writeTask(t, a, model.TaskSpec{TaskID: "task-good", Status: model.StatusToDo})
	badPath := filepath.Join(dir, "task-bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("not: [valid yaml"), 0o644))

	out, err := a.ListTasks(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "task-good", out[0].TaskID)
}
