// Package model holds the data records shared across the orchestrator:
// task specs as read from the backlog, worktree metadata, retry/cost
// bookkeeping, handler execution results, and the persisted session record.
package model

import "time"

// TaskStatus is the lifecycle state of a TaskSpec as tracked by the backlog.
type TaskStatus string

const (
	StatusToDo       TaskStatus = "ToDo"
	StatusInProgress TaskStatus = "InProgress"
	StatusDone       TaskStatus = "Done"
	StatusBlocked    TaskStatus = "Blocked"
)

// Priority is the backlog-assigned priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TaskSpec is an immutable-from-the-core record describing one unit of work.
// The core only ever mutates Status and ImplementationNotes, and only through
// a BacklogAdapter.
type TaskSpec struct {
	TaskID               string     `json:"task_id" yaml:"task_id"`
	Title                string     `json:"title" yaml:"title"`
	Description          string     `json:"description" yaml:"description"`
	Status               TaskStatus `json:"status" yaml:"status"`
	Priority             Priority   `json:"priority" yaml:"priority"`
	Labels               []string   `json:"labels,omitempty" yaml:"labels,omitempty"`
	Dependencies         []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	AcceptanceCriteria   []string   `json:"acceptance_criteria,omitempty" yaml:"acceptance_criteria,omitempty"`
	CreatedDate          *time.Time `json:"created_date,omitempty" yaml:"created_date,omitempty"`
	ImplementationNotes  string     `json:"implementation_notes,omitempty" yaml:"implementation_notes,omitempty"`
}

// HasLabel reports whether the task carries the given label.
func (t *TaskSpec) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// WorktreeStatus is the lifecycle state of a worktree.
type WorktreeStatus string

const (
	WorktreeActive    WorktreeStatus = "active"
	WorktreeStale     WorktreeStatus = "stale"
	WorktreeMerged    WorktreeStatus = "merged" // semantically "pr_opened", see DESIGN.md
	WorktreeAbandoned WorktreeStatus = "abandoned"
)

// WorktreeMetadata is the durable record of one worktree, one per task.
type WorktreeMetadata struct {
	TaskID       string         `json:"task_id"`
	WorktreePath string         `json:"worktree_path"`
	BranchName   string         `json:"branch_name"`
	CreatedAt    time.Time      `json:"created_at"`
	Creator      string         `json:"creator"`
	Status       WorktreeStatus `json:"status"`
	PRURL        string         `json:"pr_url,omitempty"`
}

// RetryState tracks per-task retry bookkeeping within a session. It is
// embedded in SessionState so it survives a crash/resume cycle.
type RetryState struct {
	TaskID        string    `json:"task_id"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`
	NextRetryTime time.Time `json:"next_retry_time"`
	BackoffSec    float64   `json:"backoff_sec"`
}

// ShouldRetry reports whether another attempt is allowed by the retry budget.
func (r *RetryState) ShouldRetry(maxRetries int) bool {
	return r.AttemptCount < maxRetries
}

// CanRetryNow reports whether the backoff window has elapsed.
func (r *RetryState) CanRetryNow(now time.Time) bool {
	if r.NextRetryTime.IsZero() {
		return true
	}
	return !now.Before(r.NextRetryTime)
}

// NextBackoff returns the backoff duration, in seconds, for the upcoming
// attempt given the current AttemptCount, following the fixed {10, 30, 90}
// schedule: 1st failure -> 10s, 2nd -> 30s, 3rd and beyond -> 90s.
func (r *RetryState) NextBackoff() float64 {
	switch r.AttemptCount {
	case 0:
		return 10.0
	case 1:
		return 30.0
	default:
		return 90.0
	}
}

// CostMethod identifies how a CostEstimate was produced.
type CostMethod string

const (
	CostMethodHeuristic CostMethod = "heuristic"
	CostMethodFallback  CostMethod = "fallback"
	CostMethodLLM       CostMethod = "llm"
)

// CostEstimate is the heuristic pre-execution cost prediction for a task.
type CostEstimate struct {
	TaskID            string             `json:"task_id"`
	EstimatedCostUSD  float64            `json:"estimated_cost_usd"`
	Confidence        float64            `json:"confidence"`
	Method            CostMethod         `json:"method"`
	Factors           map[string]float64 `json:"factors,omitempty"`
}

// TestResult is a tri-state: a handler may report tests passed, tests
// failed, or make no claim about tests at all.
type TestResult int

const (
	TestsUnknown TestResult = iota
	TestsPassed
	TestsFailed
)

// ExecutionResult is produced by a Handler and consumed by ResultProcessor.
type ExecutionResult struct {
	Success      bool       `json:"success"`
	FilesChanged []string   `json:"files_changed,omitempty"`
	Commits      []string   `json:"commits,omitempty"`
	TestsPassed  TestResult `json:"tests_passed"`
	ExitCode     int        `json:"exit_code"`
	Output       string     `json:"output,omitempty"`
	Error        string     `json:"error,omitempty"`
	CostUSD      float64    `json:"cost_usd"`
	DurationSec  float64    `json:"duration_sec"`
}

// MaxOutputBytes is the cap ExecutionResult.Output is truncated to.
const MaxOutputBytes = 64 * 1024

// TruncateOutput enforces MaxOutputBytes on combined stdout+stderr, keeping
// the tail (the part most likely to contain the final error/result).
func TruncateOutput(s string) string {
	if len(s) <= MaxOutputBytes {
		return s
	}
	return s[len(s)-MaxOutputBytes:]
}

// SessionState is the single unit of persistence for one orchestrator run.
type SessionState struct {
	SessionID       string        `json:"session_id"`
	StartTime       time.Time     `json:"start_time"`
	MaxTasks        int           `json:"max_tasks"`
	MaxCostUSD      float64       `json:"max_cost_usd"`
	MaxTimeHours    float64       `json:"max_time_hours"`

	TasksQueued     []string            `json:"tasks_queued"`
	TasksInProgress map[string]string   `json:"tasks_in_progress"` // task_id -> worktree_path
	TasksCompleted  []string            `json:"tasks_completed"`
	TasksFailed     []string            `json:"tasks_failed"`

	TotalCostUSD      float64 `json:"total_cost_usd"`
	TotalDurationSec  float64 `json:"total_duration_sec"`

	Retries map[string]*RetryState `json:"retries,omitempty"`

	AbortReason string `json:"abort_reason,omitempty"`
}

// NewSessionState builds an empty session with the given caps, ready to
// start acquiring tasks.
func NewSessionState(sessionID string, maxTasks int, maxCostUSD, maxTimeHours float64) *SessionState {
	return &SessionState{
		SessionID:       sessionID,
		StartTime:       time.Now(),
		MaxTasks:        maxTasks,
		MaxCostUSD:      maxCostUSD,
		MaxTimeHours:    maxTimeHours,
		TasksInProgress: make(map[string]string),
		Retries:         make(map[string]*RetryState),
	}
}

// MarkInProgress records task_id as acquired with the given worktree path.
func (s *SessionState) MarkInProgress(taskID, worktreePath string) {
	s.TasksQueued = removeString(s.TasksQueued, taskID)
	s.TasksInProgress[taskID] = worktreePath
}

// MarkCompleted moves task_id from in-progress to completed, folding in cost
// and duration.
func (s *SessionState) MarkCompleted(taskID string, result *ExecutionResult) {
	delete(s.TasksInProgress, taskID)
	if !containsString(s.TasksCompleted, taskID) {
		s.TasksCompleted = append(s.TasksCompleted, taskID)
	}
	if result != nil {
		s.TotalCostUSD += result.CostUSD
		s.TotalDurationSec += result.DurationSec
	}
}

// MarkFailed moves task_id from in-progress to failed.
func (s *SessionState) MarkFailed(taskID string) {
	delete(s.TasksInProgress, taskID)
	if !containsString(s.TasksFailed, taskID) {
		s.TasksFailed = append(s.TasksFailed, taskID)
	}
}

// MarkSkipped removes task_id from in-progress without counting it as
// completed or failed (used for ManualHandler outcomes).
func (s *SessionState) MarkSkipped(taskID string) {
	delete(s.TasksInProgress, taskID)
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
