package orchestrator

import (
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
)

// SessionSummary is Run's return value: enough for cmd/scaffold to report a
// human-readable summary and pick an exit code.
type SessionSummary struct {
	SessionID    string
	Completed    []string
	Failed       []string
	Blocked      []string
	AbortReason  string
	TotalCostUSD float64
	Duration     time.Duration
}

// ExitCode maps a summary to the process exit code: 0 if at least one task
// completed, 1 if every attempted task failed or was blocked, 2 if no task
// was attempted at all, 130 if the run was interrupted.
func (s *SessionSummary) ExitCode() int {
	if s.AbortReason == "interrupted" {
		return 130
	}
	if len(s.Completed) > 0 {
		return 0
	}
	attempted := len(s.Failed) + len(s.Blocked)
	if attempted == 0 {
		return 2
	}
	return 1
}

func (o *Orchestrator) summarize(state *model.SessionState, start time.Time, abortReason string) *SessionSummary {
	blocked := make([]string, 0, len(o.Escalations.List()))
	for _, e := range o.Escalations.List() {
		blocked = append(blocked, e.TaskID)
	}

	return &SessionSummary{
		SessionID:    state.SessionID,
		Completed:    append([]string(nil), state.TasksCompleted...),
		Failed:       append([]string(nil), state.TasksFailed...),
		Blocked:      blocked,
		AbortReason:  abortReason,
		TotalCostUSD: state.TotalCostUSD,
		Duration:     time.Since(start),
	}
}
