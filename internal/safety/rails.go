// Package safety implements the pre-execution validation gate
// (SafetyRails) and the session-wide hard limits (SafetyMonitor) that
// bound an orchestrator run.
package safety

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentscaffold/scaffold/internal/backlog"
	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/scheduler"
)

// RailsConfig configures SafetyRails.
type RailsConfig struct {
	RepoRoot   string // directory containing .scaffold_stop / .scaffold_skip
	MaxRetries int    // default 3
}

func (c RailsConfig) maxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// Rails is the single entry point for deciding whether a task may be
// acquired this cycle.
type Rails struct {
	config  RailsConfig
	adapter backlog.Adapter

	mu      sync.Mutex
	retries map[string]*model.RetryState
}

// NewRails builds a Rails instance with an empty retry map. Per spec, this
// state is session-local and is not itself persisted; callers that need it
// to survive a crash/resume cycle should seed Retries from
// model.SessionState.Retries (see internal/session) and read it back out
// with Retries() after a successful resume.
func NewRails(cfg RailsConfig, adapter backlog.Adapter) *Rails {
	return &Rails{config: cfg, adapter: adapter, retries: make(map[string]*model.RetryState)}
}

// SeedRetries replaces the in-memory retry map, used when resuming a
// session whose SessionState.Retries was persisted across a crash.
func (r *Rails) SeedRetries(seed map[string]*model.RetryState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = make(map[string]*model.RetryState, len(seed))
	for k, v := range seed {
		c := *v
		r.retries[k] = &c
	}
}

// Retries returns a copy of the current retry map, suitable for folding
// back into SessionState.Retries before a save.
func (r *Rails) Retries() map[string]*model.RetryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*model.RetryState, len(r.retries))
	for k, v := range r.retries {
		c := *v
		out[k] = &c
	}
	return out
}

// Validate runs the six ordered checks, short-circuiting on first failure.
// A false result with a non-empty reason is the normal "don't run this
// task (yet)" outcome. An error return wrapping model.ErrTaskSkipped means
// the task is on the skip list; any other error indicates a SafetyRails
// malfunction (e.g. the sentinel files could not be read).
func (r *Rails) Validate(ctx context.Context, taskID string) (bool, string, error) {
	if stopped, reason, err := r.checkEmergencyStop(); err != nil {
		return false, "", err
	} else if stopped {
		return false, reason, nil
	}

	if skipped, err := r.checkSkipList(taskID); err != nil {
		return false, "", err
	} else if skipped {
		return false, "", fmt.Errorf("%s: %w", taskID, model.ErrTaskSkipped)
	}

	task, err := r.adapter.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, model.ErrRecordInvalid) {
			return false, fmt.Sprintf("YAML invalid: %v", err), nil
		}
		return false, fmt.Sprintf("task not found: %v", err), nil
	}

	if blocked := r.unsatisfiedDependencies(ctx, task); len(blocked) > 0 {
		if cyclic, err := r.dependencyCycle(ctx, task); err == nil && cyclic {
			return false, fmt.Sprintf("Blocked by dependency cycle: %s", strings.Join(blocked, ", ")), nil
		}
		return false, fmt.Sprintf("Blocked by: %s", strings.Join(blocked, ", ")), nil
	}

	if ok, reason := r.checkRetryBudget(taskID); !ok {
		return false, reason, nil
	}

	return true, "", nil
}

func (r *Rails) checkEmergencyStop() (bool, string, error) {
	path := filepath.Join(r.config.RepoRoot, ".scaffold_stop")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("reading %s: %w", path, err)
	}

	lines := strings.SplitN(string(data), "\n", 2)
	reason := strings.TrimSpace(lines[0])
	reason = strings.TrimPrefix(reason, "REASON:")
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "emergency stop requested"
	}
	return true, reason, nil
}

func (r *Rails) checkSkipList(taskID string) (bool, error) {
	path := filepath.Join(r.config.RepoRoot, ".scaffold_skip")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == taskID {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// unsatisfiedDependencies returns a "<task_id> (<status>)" entry for every
// dependency that is not yet Done, e.g. "task-99 (ToDo)".
func (r *Rails) unsatisfiedDependencies(ctx context.Context, task model.TaskSpec) []string {
	var blocked []string
	for _, dep := range task.Dependencies {
		depTask, err := r.adapter.GetTask(ctx, dep)
		if err != nil {
			blocked = append(blocked, fmt.Sprintf("%s (not found)", dep))
			continue
		}
		if depTask.Status != model.StatusDone {
			blocked = append(blocked, fmt.Sprintf("%s (%s)", dep, depTask.Status))
		}
	}
	return blocked
}

// dependencyCycle walks task's not-yet-Done dependency closure (breadth
// first, capped at 100 nodes to bound a pathological backlog) and runs it
// through a scheduler.DAG validity check, so a task blocked forever by a
// cyclic dependency graph gets a distinct, diagnosable message instead of
// silently waiting next to every other not-yet-Done blocker.
func (r *Rails) dependencyCycle(ctx context.Context, root model.TaskSpec) (bool, error) {
	const maxNodes = 100

	resolved := map[string]model.TaskSpec{root.TaskID: root}
	queue := []model.TaskSpec{root}

	for len(queue) > 0 && len(resolved) <= maxNodes {
		cur := queue[0]
		queue = queue[1:]

		for _, dep := range cur.Dependencies {
			if _, ok := resolved[dep]; ok {
				continue
			}
			depTask, err := r.adapter.GetTask(ctx, dep)
			if err != nil {
				// An unresolvable dependency can't itself be part of a
				// cycle; the ordinary "not found" message already covers it.
				continue
			}
			resolved[dep] = depTask
			queue = append(queue, depTask)
		}
	}

	dag := scheduler.NewDAG()
	for id, t := range resolved {
		var deps []string
		for _, dep := range t.Dependencies {
			if _, ok := resolved[dep]; ok {
				deps = append(deps, dep)
			}
		}
		if err := dag.Add(id, deps); err != nil {
			return false, err
		}
	}

	if _, err := dag.Validate(); err != nil {
		return true, nil
	}
	return false, nil
}

func (r *Rails) checkRetryBudget(taskID string) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.retries[taskID]
	if !ok {
		return true, ""
	}
	if !state.ShouldRetry(r.config.maxRetries()) {
		return false, fmt.Sprintf("retry budget exceeded (%d attempts)", state.AttemptCount)
	}
	now := time.Now()
	if !state.CanRetryNow(now) {
		remaining := state.NextRetryTime.Sub(now).Seconds()
		return false, fmt.Sprintf("retry backoff: %.0fs remaining", remaining)
	}
	return true, ""
}

// RecordFailure increments the attempt count for taskID and schedules the
// next retry per the fixed {10, 30, 90}-second backoff schedule.
func (r *Rails) RecordFailure(taskID, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.retries[taskID]
	if !ok {
		state = &model.RetryState{TaskID: taskID}
		r.retries[taskID] = state
	}
	state.LastError = errMsg
	backoff := state.NextBackoff()
	state.AttemptCount++
	state.BackoffSec = backoff
	state.NextRetryTime = time.Now().Add(time.Duration(backoff) * time.Second)
}

// RecordSuccess drops any RetryState for taskID.
func (r *Rails) RecordSuccess(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.retries, taskID)
}
