// Package handler executes a single task inside a worktree and returns a
// structured model.ExecutionResult. ClaudeCodeHandler invokes a headless
// coding-agent CLI; ManualHandler marks user-action tasks out of scope.
package handler

import (
	"context"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
)

// Handler executes one task inside a worktree.
type Handler interface {
	Execute(ctx context.Context, task model.TaskSpec, worktreePath string, timeout time.Duration) (model.ExecutionResult, error)
}

// Registry resolves a route key (as returned by a TaskRouter) to a Handler.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a Registry from named handlers.
func NewRegistry(handlers map[string]Handler) *Registry {
	return &Registry{handlers: handlers}
}

// Resolve returns the handler registered under key, and whether it exists.
func (r *Registry) Resolve(key string) (Handler, bool) {
	h, ok := r.handlers[key]
	return h, ok
}
