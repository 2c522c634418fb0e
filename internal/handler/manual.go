package handler

import (
	"context"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
)

// ManualHandler is the route target for tasks labeled user-action. It never
// invokes a coding agent; it reports failure immediately so the orchestrator
// can route the task to the escalation board instead of retrying it.
type ManualHandler struct {
	// OnEscalate, if set, is called with the task that needs human action.
	// The orchestrator wires this to the escalation board.
	OnEscalate func(task model.TaskSpec)
}

// Execute implements Handler. It always reports failure with a fixed error
// string; DurationSec and CostUSD are zero since no agent ran.
func (h *ManualHandler) Execute(_ context.Context, task model.TaskSpec, _ string, _ time.Duration) (model.ExecutionResult, error) {
	if h.OnEscalate != nil {
		h.OnEscalate(task)
	}
	return model.ExecutionResult{
		Success:     false,
		ExitCode:    -1,
		TestsPassed: model.TestsUnknown,
		Error:       "requires manual action",
	}, nil
}
