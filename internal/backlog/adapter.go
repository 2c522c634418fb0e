// Package backlog defines the narrow interface the orchestrator core uses to
// read and mutate task records in an external backlog store, plus a
// concrete file-backed implementation.
package backlog

import (
	"context"

	"github.com/agentscaffold/scaffold/internal/model"
)

// ListFilter narrows a ListTasks call. Zero values mean "no filter".
type ListFilter struct {
	Status                model.TaskStatus
	Labels                []string
	DependenciesSatisfied bool
	Limit                 int
}

// Adapter is the external interface the core consumes to read and write
// task records. The core never mutates a task it did not first observe via
// GetTask, and never issues a status transition outside the matrix in
// SPEC_FULL.md §4.13.
type Adapter interface {
	// ListTasks returns tasks matching filter. When filter.DependenciesSatisfied
	// is true, tasks with any dependency not in status Done (including
	// dependencies that do not resolve at all) are omitted.
	ListTasks(ctx context.Context, filter ListFilter) ([]model.TaskSpec, error)

	// GetTask returns the task by id, or a model.ErrNotFound-wrapping error
	// if it does not exist.
	GetTask(ctx context.Context, taskID string) (model.TaskSpec, error)

	// UpdateStatus transitions a task to newStatus. Callers are responsible
	// for only requesting transitions valid under the status matrix.
	UpdateStatus(ctx context.Context, taskID string, newStatus model.TaskStatus) error

	// AppendNotes appends text to the task's implementation notes,
	// preserving whatever was already there. Not idempotent: calling twice
	// with the same text leaves two copies.
	AppendNotes(ctx context.Context, taskID string, text string) error
}
