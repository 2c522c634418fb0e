// Package worktree creates, tracks, and reclaims isolated git worktrees,
// one per in-flight task, with a durable JSON index so a restart sees prior
// worktrees.
package worktree

// Info is the in-memory handle returned by Create: everything the caller
// needs to route a task into its own working copy.
type Info struct {
	Path   string // absolute path to the worktree directory
	Branch string // e.g. "autonomous/task-123"
	TaskID string
	Head   string // HEAD commit hash at creation time
}

// MergeProbeResult mirrors vcs.MergeProbe but is re-exported here so
// callers that only import worktree don't also need the vcs package.
type MergeProbeResult struct {
	ConflictFree    bool
	ConflictedPaths []string
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	RepoPath      string // absolute path to the git repository
	RepoName      string // base name used to derive sibling worktree dirs
	BaseBranch    string // e.g. "main"
	WorktreeRoot  string // parent directory for "<repo_name>-<task_id>" dirs; defaults to the repo's parent
	MaxConcurrent int    // default 3
	IndexPath     string // path to the persisted JSON index, e.g. ".scaffold/worktrees.json"
	Creator       string // tag stamped into new WorktreeMetadata records
}

func (c ManagerConfig) maxConcurrent() int {
	if c.MaxConcurrent <= 0 {
		return 3
	}
	return c.MaxConcurrent
}

func (c ManagerConfig) worktreeRoot() string {
	if c.WorktreeRoot != "" {
		return c.WorktreeRoot
	}
	return parentDir(c.RepoPath)
}

