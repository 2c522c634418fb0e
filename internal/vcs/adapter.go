// Package vcs wraps the source-control binary and PR-hosting CLI the core
// depends on, behind a narrow adapter interface. The only concrete
// implementation shells out to git and gh.
package vcs

import "context"

// PushResult is returned by Push.
type PushResult struct {
	Pushed bool
}

// PRRequest describes the draft pull request to open.
type PRRequest struct {
	HeadBranch string
	BaseBranch string
	Title      string
	Body       string
}

// MergeProbe is the outcome of a non-mutating conflict check.
type MergeProbe struct {
	ConflictFree    bool
	ConflictedPaths []string
}

// Adapter is the external interface the core uses for every git/PR-hosting
// operation it performs outside WorktreeManager's own lifecycle calls.
type Adapter interface {
	// Commit stages all changes in worktreePath and commits with message.
	// A worktree with nothing to commit is not an error.
	Commit(ctx context.Context, worktreePath, message string) error

	// DiffNameOnly returns paths changed relative to HEAD in worktreePath.
	DiffNameOnly(ctx context.Context, worktreePath string) ([]string, error)

	// LogShortSHAs returns abbreviated commit SHAs made since the worktree
	// was created (HEAD of the base branch at creation time).
	LogShortSHAs(ctx context.Context, worktreePath, sinceRef string) ([]string, error)

	// Push pushes branch to the configured remote, setting upstream on
	// first push.
	Push(ctx context.Context, worktreePath, branch string) (PushResult, error)

	// ProbeMergeConflicts runs a non-mutating merge-tree dry run of branch
	// against baseBranch. Never performs a real merge.
	ProbeMergeConflicts(ctx context.Context, repoPath, baseBranch, branch string) (MergeProbe, error)

	// CreateDraftPR opens a draft pull request and returns its URL.
	CreateDraftPR(ctx context.Context, worktreePath string, req PRRequest) (string, error)
}
