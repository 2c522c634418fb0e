package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/agentscaffold/scaffold/internal/handler"
	"github.com/agentscaffold/scaffold/internal/model"
)

// BreakingHandler decorates a handler.Handler with a per-route circuit
// breaker. A task's execution failure (either a returned error or
// ExecutionResult.Success == false) counts as a breaker failure; once the
// route trips, further tasks are rejected immediately without invoking the
// wrapped handler until the breaker's timeout elapses and a half-open
// trial succeeds.
type BreakingHandler struct {
	route    string
	inner    handler.Handler
	registry *Registry
}

// Wrap returns a handler.Handler that runs inner's Execute through the
// circuit breaker registered for route.
func Wrap(route string, inner handler.Handler, registry *Registry) *BreakingHandler {
	return &BreakingHandler{route: route, inner: inner, registry: registry}
}

var _ handler.Handler = (*BreakingHandler)(nil)

// Execute runs the wrapped handler through the route's circuit breaker. If
// the breaker is open, it returns a failed ExecutionResult without ever
// calling the wrapped handler.
func (h *BreakingHandler) Execute(ctx context.Context, task model.TaskSpec, worktreePath string, timeout time.Duration) (model.ExecutionResult, error) {
	cb := h.registry.Get(h.route)

	var hardErr error
	out, err := cb.Execute(func() (interface{}, error) {
		result, innerErr := h.inner.Execute(ctx, task, worktreePath, timeout)
		if innerErr != nil {
			hardErr = innerErr
			return result, innerErr
		}
		if !result.Success {
			return result, fmt.Errorf("handler execution failed: %s", result.Error)
		}
		return result, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return model.ExecutionResult{
				Success: false,
				Error:   fmt.Sprintf("route %q circuit breaker open: %s", h.route, err),
			}, nil
		}
		// The wrapped handler returned a hard error (not a task-level
		// failure reflected in ExecutionResult.Success); propagate it.
		if hardErr != nil {
			return model.ExecutionResult{}, hardErr
		}
	}

	result, _ := out.(model.ExecutionResult)
	return result, nil
}
