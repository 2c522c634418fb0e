package config

// DefaultConfig returns the session config's built-in defaults, per the
// documented CLI flag table: max_tasks=10, max_concurrent=3, max_cost=5.0,
// max_time=4h, per_task_timeout=3600s.
func DefaultConfig() *SessionConfig {
	return &SessionConfig{
		RepoPath:          ".",
		BacklogDir:        ".scaffold/backlog",
		SessionDir:        ".scaffold/session",
		WorktreeRoot:      ".scaffold/worktrees",
		HistoryDBPath:     ".scaffold/history.db",
		BaseBranch:        "main",
		MaxTasks:          10,
		MaxConcurrent:     3,
		MaxCostUSD:        5.0,
		MaxTimeHours:      4.0,
		PerTaskTimeoutSec: 3600,
	}
}
