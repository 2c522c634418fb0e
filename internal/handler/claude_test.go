package handler

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
)

// TestManualHandler_AlwaysFails verifies that ManualHandler reports failure
// without ever invoking a subprocess, and notifies OnEscalate.
func TestManualHandler_AlwaysFails(t *testing.T) {
	var escalated model.TaskSpec
	h := &ManualHandler{OnEscalate: func(task model.TaskSpec) { escalated = task }}

	task := model.TaskSpec{TaskID: "task-1", Labels: []string{"user-action"}}
	result, err := h.Execute(context.Background(), task, "/tmp/does-not-matter", time.Second)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Success {
		t.Error("ManualHandler should never report success")
	}
	if result.Error != "requires manual action" {
		t.Errorf("unexpected error string: %q", result.Error)
	}
	if escalated.TaskID != "task-1" {
		t.Error("expected OnEscalate to be called with the task")
	}
}

// TestClaudeCodeHandler_DefaultsCLIPath verifies the constructor falls back
// to "claude" when no path is given.
func TestClaudeCodeHandler_DefaultsCLIPath(t *testing.T) {
	h := NewClaudeCodeHandler("", nil, nil)
	if h.CLIPath != "claude" {
		t.Errorf("expected default CLIPath 'claude', got %q", h.CLIPath)
	}
}

// TestClaudeCodeHandler_FailingCLIProducesFailure verifies that a CLI
// invocation which exits with an error yields a failed ExecutionResult,
// without the call itself returning a Go error (the failure is a reported
// outcome, not a plumbing failure).
func TestClaudeCodeHandler_FailingCLIProducesFailure(t *testing.T) {
	h := NewClaudeCodeHandler("sleep", nil, nil)

	// "sleep --non-interactive --prompt <x>" is nonsense to the sleep binary
	// and will exit quickly with an error, which is fine: we only assert the
	// handler never blocks past the timeout and returns a sane shape.
	result, err := h.Execute(context.Background(), model.TaskSpec{TaskID: "t1"}, ".", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Success {
		t.Error("expected failure for a nonsense CLI invocation")
	}
}

// TestDefaultPrompt_IncludesTaskIDAndTitle verifies the minimal fallback
// prompt carries enough context to be useful on its own.
func TestDefaultPrompt_IncludesTaskIDAndTitle(t *testing.T) {
	task := model.TaskSpec{TaskID: "task-42", Title: "Fix the thing", Description: "details"}
	prompt := defaultPrompt(task)
	if !regexp.MustCompile(`task-42`).MatchString(prompt) {
		t.Errorf("expected prompt to mention task id, got: %s", prompt)
	}
	if !regexp.MustCompile(`Fix the thing`).MatchString(prompt) {
		t.Errorf("expected prompt to mention title, got: %s", prompt)
	}
}
