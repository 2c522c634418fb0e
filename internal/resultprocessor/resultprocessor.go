// Package resultprocessor turns a Handler's ExecutionResult into backlog
// and worktree state transitions: committing leftover changes, pushing the
// task's branch, opening a draft pull request, and recording outcomes to
// the backlog and history ledger.
package resultprocessor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentscaffold/scaffold/internal/backlog"
	"github.com/agentscaffold/scaffold/internal/history"
	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/vcs"
	"github.com/agentscaffold/scaffold/internal/worktree"
)

// Outcome is the processor's own result, distinct from the handler's
// ExecutionResult: it tells the orchestrator whether the task landed.
type Outcome struct {
	Success bool
	PRURL   string
	// Blocked is set when the handler was "manual": the task moves to
	// Blocked, not Failed, and is not retried.
	Blocked bool
	Error   string
}

// Processor wires the backlog, worktree manager, VCS adapter, and history
// ledger together to process one handler result.
type Processor struct {
	Backlog    backlog.Adapter
	Worktrees  *worktree.Manager
	VCS        vcs.Adapter
	History    *history.Store
	BaseBranch string
	SessionID  string
}

var typePrefixes = map[string]string{
	"BUILD":    "feat",
	"FIX":      "fix",
	"TEST":     "test",
	"CLEANUP":  "chore",
	"AUDIT":    "docs",
	"DOCS":     "docs",
	"REFACTOR": "refactor",
}

// commitType maps a task's title prefix (e.g. "BUILD: add X") to a
// conventional-commit type, defaulting to "feat" when no prefix matches.
func commitType(title string) (string, string) {
	for prefix, ctype := range typePrefixes {
		if strings.HasPrefix(title, prefix+":") || strings.HasPrefix(title, prefix+" ") {
			rest := strings.TrimPrefix(title, prefix)
			rest = strings.TrimPrefix(rest, ":")
			return ctype, strings.TrimSpace(rest)
		}
	}
	return "feat", title
}

func commitMessage(task model.TaskSpec) string {
	ctype, title := commitType(task.Title)
	return fmt.Sprintf("%s: %s\n\n%s\n\nCompletes: %s", ctype, title, task.Description, task.TaskID)
}

func prBody(task model.TaskSpec) string {
	var b strings.Builder
	b.WriteString(task.Description)
	b.WriteString("\n\n")
	if len(task.AcceptanceCriteria) > 0 {
		b.WriteString("## Acceptance Criteria\n\n")
		for _, c := range task.AcceptanceCriteria {
			b.WriteString(fmt.Sprintf("- [ ] %s\n", c))
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("Completes: %s\n", task.TaskID))
	return b.String()
}

func retryOnceBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// Process handles one handler ExecutionResult per SPEC_FULL.md §4.9. It
// never panics; every subprocess-facing step is wrapped so a single flaky
// push or PR-create attempt surfaces as an Outcome, not a crash.
func (p *Processor) Process(ctx context.Context, task model.TaskSpec, wtInfo *worktree.Info, result model.ExecutionResult, route string, start time.Time) Outcome {
	if !result.Success && route == "manual" {
		p.updateStatus(ctx, task.TaskID, model.StatusBlocked)
		p.appendNotes(ctx, task.TaskID, fmt.Sprintf("manual action required: %s", result.Error))
		p.recordRun(ctx, task.TaskID, route, result, start, "")
		return Outcome{Success: false, Blocked: true, Error: result.Error}
	}

	if !result.Success {
		excerpt := result.Output
		if len(excerpt) > 500 {
			excerpt = excerpt[len(excerpt)-500:]
		}
		p.appendNotes(ctx, task.TaskID, fmt.Sprintf("handler failed: %s\n%s", result.Error, excerpt))
		p.recordRun(ctx, task.TaskID, route, result, start, "")
		return Outcome{Success: false, Error: result.Error}
	}

	if p.VCS != nil {
		if err := p.VCS.Commit(ctx, wtInfo.Path, commitMessage(task)); err != nil {
			return Outcome{Success: false, Error: fmt.Sprintf("commit failed: %v", err)}
		}
	}

	if p.Worktrees != nil {
		probe, err := p.Worktrees.ProbeMergeConflicts(task.TaskID)
		if err != nil {
			return Outcome{Success: false, Error: fmt.Sprintf("merge conflict probe failed: %v", err)}
		}
		if !probe.ConflictFree {
			return Outcome{Success: false, Error: fmt.Sprintf("merge conflicts against %s: %s", p.BaseBranch, strings.Join(probe.ConflictedPaths, ", "))}
		}
	}

	if p.VCS != nil {
		if err := p.pushWithRetry(ctx, wtInfo.Path, wtInfo.Branch); err != nil {
			return Outcome{Success: false, Error: fmt.Sprintf("push failed: %v", err)}
		}
	}

	prURL, err := p.createPRWithRetry(ctx, wtInfo, task)
	if err != nil {
		return Outcome{Success: false, Error: fmt.Sprintf("PR creation failed: %v", err)}
	}

	if p.Worktrees != nil {
		if err := p.Worktrees.UpdateStatus(task.TaskID, model.WorktreeMerged, prURL); err != nil {
			return Outcome{Success: false, Error: fmt.Sprintf("worktree metadata update failed: %v", err)}
		}
	}

	elapsed := time.Since(start)
	p.updateStatus(ctx, task.TaskID, model.StatusDone)
	p.appendNotes(ctx, task.TaskID, fmt.Sprintf("PR opened: %s (elapsed %s)", prURL, elapsed.Round(time.Second)))
	p.recordRun(ctx, task.TaskID, route, result, start, prURL)

	return Outcome{Success: true, PRURL: prURL}
}

// recordRun appends one row to the non-authoritative history ledger,
// independent of SessionStore. Process calls it for a blocked manual task,
// a failed handler run, and a run that opened a PR; a run that fails in the
// commit, conflict-probe, push, PR or worktree-update step appends no row.
func (p *Processor) recordRun(ctx context.Context, taskID, route string, result model.ExecutionResult, start time.Time, prURL string) {
	if p.History == nil {
		return
	}
	_ = p.History.Append(ctx, history.Run{
		TaskID:      taskID,
		SessionID:   p.SessionID,
		Route:       route,
		Success:     result.Success,
		ExitCode:    result.ExitCode,
		CostUSD:     result.CostUSD,
		DurationSec: result.DurationSec,
		PRURL:       prURL,
		Error:       result.Error,
		StartedAt:   start,
		FinishedAt:  start.Add(time.Duration(result.DurationSec * float64(time.Second))),
	})
}

func (p *Processor) pushWithRetry(ctx context.Context, worktreePath, branch string) error {
	return backoff.Retry(func() error {
		_, err := p.VCS.Push(ctx, worktreePath, branch)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(retryOnceBackoff(), 1), ctx))
}

func (p *Processor) createPRWithRetry(ctx context.Context, wtInfo *worktree.Info, task model.TaskSpec) (string, error) {
	var url string
	err := backoff.Retry(func() error {
		u, err := p.VCS.CreateDraftPR(ctx, wtInfo.Path, vcs.PRRequest{
			HeadBranch: wtInfo.Branch,
			BaseBranch: p.BaseBranch,
			Title:      task.Title,
			Body:       prBody(task),
		})
		if err != nil {
			return err
		}
		url = u
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(retryOnceBackoff(), 1), ctx))
	return url, err
}

func (p *Processor) updateStatus(ctx context.Context, taskID string, status model.TaskStatus) {
	if p.Backlog == nil {
		return
	}
	if err := p.Backlog.UpdateStatus(ctx, taskID, status); err != nil && !errors.Is(err, model.ErrNotFound) {
		// Backlog write failures are not fatal and are dropped here: the
		// failed status change is not recorded anywhere and is not retried.
	}
}

func (p *Processor) appendNotes(ctx context.Context, taskID, text string) {
	if p.Backlog == nil {
		return
	}
	_ = p.Backlog.AppendNotes(ctx, taskID, text)
}
