package config

// SessionConfig is the full set of knobs governing one orchestrator run.
// It is assembled in three layers, lowest precedence first: built-in
// defaults, a JSON config file, then CLI flags/environment variables.
type SessionConfig struct {
	// RepoPath is the git repository the orchestrator operates on.
	RepoPath string `json:"repo_path"`
	// BacklogDir is where the file-based backlog adapter reads/writes task specs.
	BacklogDir string `json:"backlog_dir"`
	// SessionDir holds the session-state JSON files, one per session.
	SessionDir string `json:"session_dir"`
	// WorktreeRoot is where per-task git worktrees are created.
	WorktreeRoot string `json:"worktree_root"`
	// HistoryDBPath is the SQLite ledger of completed task runs.
	HistoryDBPath string `json:"history_db_path"`
	// BaseBranch is the branch worktrees fork from and PRs target.
	BaseBranch string `json:"base_branch"`

	// MaxTasks caps the number of tasks completed+failed in one session.
	MaxTasks int `json:"max_tasks"`
	// MaxConcurrent is the worker pool size.
	MaxConcurrent int `json:"max_concurrent"`
	// MaxCostUSD is the session-wide cost ceiling.
	MaxCostUSD float64 `json:"max_cost_usd"`
	// MaxTimeHours is the session wall-clock ceiling.
	MaxTimeHours float64 `json:"max_time_hours"`
	// PerTaskTimeoutSec bounds a single handler invocation, independent of
	// the session time budget.
	PerTaskTimeoutSec int `json:"per_task_timeout_sec"`

	// Labels restricts fetching to tasks carrying any of these labels.
	// Empty means no restriction.
	Labels []string `json:"labels,omitempty"`

	// DryRun skips handler execution and all VCS writes.
	DryRun bool `json:"dry_run"`
}
