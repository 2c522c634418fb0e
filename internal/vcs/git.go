package vcs

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// GitGHAdapter implements Adapter by shelling out to git and gh. Timeouts
// per operation mirror the original implementation's subprocess timeouts.
type GitGHAdapter struct {
	GitCmd string // default "git"
	GHCmd  string // default "gh"
}

// NewGitGHAdapter returns a GitGHAdapter with default binary names.
func NewGitGHAdapter() *GitGHAdapter {
	return &GitGHAdapter{GitCmd: "git", GHCmd: "gh"}
}

func (a *GitGHAdapter) git() string {
	if a.GitCmd == "" {
		return "git"
	}
	return a.GitCmd
}

func (a *GitGHAdapter) gh() string {
	if a.GHCmd == "" {
		return "gh"
	}
	return a.GHCmd
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// Commit implements Adapter.
func (a *GitGHAdapter) Commit(ctx context.Context, worktreePath, message string) error {
	addCtx, cancel := withTimeout(ctx, 10*time.Second)
	defer cancel()
	addCmd := exec.CommandContext(addCtx, a.git(), "add", ".")
	addCmd.Dir = worktreePath
	if out, err := addCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git add failed: %w (output: %s)", err, string(out))
	}

	commitCtx, cancel2 := withTimeout(ctx, 30*time.Second)
	defer cancel2()
	commitCmd := exec.CommandContext(commitCtx, a.git(), "commit", "-m", message)
	commitCmd.Dir = worktreePath
	out, err := commitCmd.CombinedOutput()
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("git commit failed: %w (output: %s)", err, string(out))
	}
	return nil
}

// DiffNameOnly implements Adapter.
func (a *GitGHAdapter) DiffNameOnly(ctx context.Context, worktreePath string) ([]string, error) {
	diffCtx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(diffCtx, a.git(), "diff", "--name-only", "HEAD")
	cmd.Dir = worktreePath
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	return splitNonEmptyLines(string(out)), nil
}

// LogShortSHAs implements Adapter.
func (a *GitGHAdapter) LogShortSHAs(ctx context.Context, worktreePath, sinceRef string) ([]string, error) {
	logCtx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()
	rangeSpec := "HEAD"
	if sinceRef != "" {
		rangeSpec = sinceRef + "..HEAD"
	}
	cmd := exec.CommandContext(logCtx, a.git(), "log", "--format=%h", rangeSpec)
	cmd.Dir = worktreePath
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}
	return splitNonEmptyLines(string(out)), nil
}

// Push implements Adapter.
func (a *GitGHAdapter) Push(ctx context.Context, worktreePath, branch string) (PushResult, error) {
	pushCtx, cancel := withTimeout(ctx, 60*time.Second)
	defer cancel()
	cmd := exec.CommandContext(pushCtx, a.git(), "push", "-u", "origin", branch)
	cmd.Dir = worktreePath
	if out, err := cmd.CombinedOutput(); err != nil {
		return PushResult{}, fmt.Errorf("git push failed: %w (output: %s)", err, string(out))
	}
	return PushResult{Pushed: true}, nil
}

var conflictLineRe = regexp.MustCompile(`CONFLICT.*\bin\s+(\S+)`)

// ProbeMergeConflicts implements Adapter. It never mutates the repository:
// git merge-tree performs a virtual, three-way merge and reports conflicts
// without touching the working tree or HEAD.
func (a *GitGHAdapter) ProbeMergeConflicts(ctx context.Context, repoPath, baseBranch, branch string) (MergeProbe, error) {
	probeCtx, cancel := withTimeout(ctx, 15*time.Second)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, a.git(), "merge-tree", "--write-tree", baseBranch, branch)
	cmd.Dir = repoPath
	out, err := cmd.CombinedOutput()
	output := string(out)

	if err == nil && !strings.Contains(output, "CONFLICT") {
		return MergeProbe{ConflictFree: true}, nil
	}

	var conflicts []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if m := conflictLineRe.FindStringSubmatch(scanner.Text()); m != nil {
			conflicts = append(conflicts, m[1])
		}
	}
	return MergeProbe{ConflictFree: false, ConflictedPaths: conflicts}, nil
}

var prURLRe = regexp.MustCompile(`https://\S+/pull/\d+`)

// CreateDraftPR implements Adapter.
func (a *GitGHAdapter) CreateDraftPR(ctx context.Context, worktreePath string, req PRRequest) (string, error) {
	prCtx, cancel := withTimeout(ctx, 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(prCtx, a.gh(), "pr", "create",
		"--title", req.Title,
		"--body", req.Body,
		"--base", req.BaseBranch,
		"--head", req.HeadBranch,
		"--draft",
	)
	cmd.Dir = worktreePath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("gh pr create failed: %w (output: %s)", err, string(out))
	}

	url := strings.TrimSpace(string(out))
	if strings.HasPrefix(url, "http") {
		return url, nil
	}
	if m := prURLRe.FindString(string(out)); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("could not extract PR URL from gh output: %s", string(out))
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
