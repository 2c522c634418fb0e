package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/vcs"
)

// ClaudeCodeHandler executes a task by invoking a headless coding-agent CLI
// as a subprocess, one invocation per task. Unlike an interactive backend,
// there is no persistent session across calls: the CLI receives the whole
// assembled context in a single --prompt argument and runs to completion.
type ClaudeCodeHandler struct {
	// CLIPath is the executable invoked, default "claude".
	CLIPath string
	VCS     vcs.Adapter
	ProcMgr *ProcessManager
}

// NewClaudeCodeHandler builds a ClaudeCodeHandler. adapter and procMgr may be
// nil; a nil VCS adapter degrades extraction to output-regex fallbacks only,
// and a nil ProcessManager means the subprocess is untracked.
func NewClaudeCodeHandler(cliPath string, adapter vcs.Adapter, procMgr *ProcessManager) *ClaudeCodeHandler {
	if cliPath == "" {
		cliPath = "claude"
	}
	return &ClaudeCodeHandler{CLIPath: cliPath, VCS: adapter, ProcMgr: procMgr}
}

// Execute runs the CLI against the assembled task context inside worktreePath
// and returns the parsed ExecutionResult. A session ID is minted per
// invocation purely for traceability in logs; the CLI itself is stateless
// across Execute calls.
func (h *ClaudeCodeHandler) Execute(ctx context.Context, task model.TaskSpec, worktreePath string, timeout time.Duration) (model.ExecutionResult, error) {
	return h.ExecuteWithContext(ctx, task, worktreePath, timeout, defaultPrompt(task))
}

// ExecuteWithContext is Execute but accepts a pre-assembled prompt (normally
// produced by internal/contextassembler) instead of a minimal default.
func (h *ClaudeCodeHandler) ExecuteWithContext(ctx context.Context, task model.TaskSpec, worktreePath string, timeout time.Duration, assembledContext string) (model.ExecutionResult, error) {
	sessionID := uuid.New().String()
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := newCommand(runCtx, h.CLIPath, "--non-interactive", "--prompt", assembledContext)
	cmd.Dir = worktreePath

	stdout, stderr, runErr := executeCommand(runCtx, cmd, h.ProcMgr)
	duration := time.Since(start).Seconds()
	combined := model.TruncateOutput(string(stdout) + "\n" + string(stderr))

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return model.ExecutionResult{
			Success:     false,
			ExitCode:    -1,
			Output:      combined,
			Error:       fmt.Sprintf("Execution timeout after %ds", int(timeout.Seconds())),
			DurationSec: duration,
		}, nil
	}

	exitCode := 0
	if runErr != nil {
		exitCode = exitCodeFromErr(runErr)
	}

	filesChanged := extractFilesChanged(ctx, h.VCS, worktreePath, combined)
	commits := extractCommits(ctx, h.VCS, worktreePath, "", combined)
	testsPassed := extractTestsPassed(combined)
	cost := extractCost(combined)
	success := isSuccessful(exitCode, testsPassed, commits, filesChanged, combined)

	result := model.ExecutionResult{
		Success:      success,
		FilesChanged: filesChanged,
		Commits:      commits,
		TestsPassed:  testsPassed,
		ExitCode:     exitCode,
		Output:       combined,
		CostUSD:      cost,
		DurationSec:  duration,
	}
	if !success {
		result.Error = extractError(combined)
	}

	_ = sessionID // retained for structured logging by the caller, not the wire result
	return result, nil
}

// defaultPrompt builds a minimal prompt when the caller has no assembled
// context on hand. Normal operation always supplies one via
// ExecuteWithContext instead.
func defaultPrompt(task model.TaskSpec) string {
	return fmt.Sprintf("Task %s: %s\n\n%s", task.TaskID, task.Title, task.Description)
}

func exitCodeFromErr(err error) int {
	type exitCoder interface {
		ExitCode() int
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}
