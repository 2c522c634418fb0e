package worktree

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/vcs"
)

// Manager creates, tracks, and reclaims isolated git worktrees, one per
// in-flight task, enforcing a concurrency cap and branch/path uniqueness.
type Manager struct {
	config ManagerConfig
	vcs    vcs.Adapter
	idx    *index

	// mu serializes create/cleanup/status-update operations on a single
	// manager-wide lock, per spec: two concurrent Create calls can't both
	// observe room under MaxConcurrent and overshoot it, and a Cleanup
	// can't race a concurrent UpdateStatus on the same entry. List takes a
	// lock-free snapshot and is exempt. mergeMu is separate because it
	// guards the shared repo checkout during a merge-tree probe, not the
	// index.
	mu      sync.Mutex
	mergeMu sync.Mutex
}

// NewManager builds a Manager. adapter supplies the VCS operations used for
// merge-conflict probing; the worktree add/remove/list plumbing below shells
// out to git directly, matching how the rest of this package already works.
func NewManager(cfg ManagerConfig, adapter vcs.Adapter) (*Manager, error) {
	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(cfg.RepoPath, ".scaffold", "worktrees.json")
	}
	if cfg.RepoName == "" {
		cfg.RepoName = filepath.Base(cfg.RepoPath)
	}
	idx, err := newIndex(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	return &Manager{config: cfg, vcs: adapter, idx: idx}, nil
}

func parentDir(path string) string {
	return filepath.Dir(path)
}

// branchAndPath derives the branch name and worktree path for taskID,
// appending a numeric suffix to the path if a collision is found on disk
// (the branch name itself is always unique per task_id, so it never needs
// a suffix).
func (m *Manager) branchAndPath(taskID string) (branch, path string) {
	branch = fmt.Sprintf("autonomous/%s", taskID)
	base := filepath.Join(m.config.worktreeRoot(), fmt.Sprintf("%s-%s", m.config.RepoName, taskID))
	path = base
	for suffix := 2; pathExists(path); suffix++ {
		path = fmt.Sprintf("%s-%d", base, suffix)
	}
	return branch, path
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create creates a new worktree for taskID, branching from BaseBranch, and
// registers a WorktreeMetadata entry with status=active.
func (m *Manager) Create(taskID string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.idx.get(taskID); ok && existing.Status == model.WorktreeActive {
		return nil, fmt.Errorf("%s: %w", taskID, model.ErrAlreadyExists)
	}
	if m.idx.countActive() >= m.config.maxConcurrent() {
		return nil, fmt.Errorf("%d active worktrees: %w", m.config.maxConcurrent(), model.ErrLimitReached)
	}

	branch, wtPath := m.branchAndPath(taskID)

	cmd := exec.Command("git", "worktree", "add", "-b", branch, wtPath, m.config.BaseBranch)
	cmd.Dir = m.config.RepoPath
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("creating worktree for %s: %w (output: %s)", taskID, err, string(output))
	}

	headCmd := exec.Command("git", "rev-parse", "HEAD")
	headCmd.Dir = wtPath
	headOutput, err := headCmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD for %s: %w (output: %s)", taskID, err, string(headOutput))
	}

	info := &Info{
		Path:   wtPath,
		Branch: branch,
		TaskID: taskID,
		Head:   strings.TrimSpace(string(headOutput)),
	}

	meta := &model.WorktreeMetadata{
		TaskID:       taskID,
		WorktreePath: wtPath,
		BranchName:   branch,
		CreatedAt:    time.Now(),
		Creator:      m.config.Creator,
		Status:       model.WorktreeActive,
	}
	if err := m.idx.put(meta); err != nil {
		return nil, fmt.Errorf("persisting worktree metadata for %s: %w", taskID, err)
	}

	return info, nil
}

// UpdateStatus transitions the WorktreeMetadata for taskID. The allowed
// transitions are active -> {merged, abandoned, stale}; stale is otherwise
// only reachable via an age-based scan (not implemented as a background
// process here — Reconcile performs an on-demand equivalent).
func (m *Manager) UpdateStatus(taskID string, status model.WorktreeStatus, prURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.idx.get(taskID)
	if !ok {
		return fmt.Errorf("%s: %w", taskID, model.ErrNotFound)
	}
	updated := *meta
	updated.Status = status
	if prURL != "" {
		updated.PRURL = prURL
	}
	return m.idx.put(&updated)
}

// ProbeMergeConflicts performs a non-mutating three-way merge check of
// branch against BaseBranch. It never merges, checks out, or otherwise
// changes repository state; landing a task is exclusively push + draft PR.
func (m *Manager) ProbeMergeConflicts(taskID string) (MergeProbeResult, error) {
	meta, ok := m.idx.get(taskID)
	if !ok {
		return MergeProbeResult{}, fmt.Errorf("%s: %w", taskID, model.ErrNotFound)
	}

	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	if m.vcs == nil {
		return MergeProbeResult{}, fmt.Errorf("probing merge conflicts for %s: no VCS adapter configured", taskID)
	}
	probe, err := m.vcs.ProbeMergeConflicts(context.Background(), m.config.RepoPath, m.config.BaseBranch, meta.BranchName)
	if err != nil {
		return MergeProbeResult{}, fmt.Errorf("probing merge conflicts for %s: %w", taskID, err)
	}
	return MergeProbeResult{ConflictFree: probe.ConflictFree, ConflictedPaths: probe.ConflictedPaths}, nil
}

// Cleanup removes the worktree and, if deleteBranch is set, its branch. If
// force is false and the worktree has uncommitted changes, it fails
// DirtyWorktree rather than discarding work silently. Idempotent: a second
// call against an already-removed worktree observes the same end state.
func (m *Manager) Cleanup(taskID string, force, deleteBranch bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.idx.get(taskID)
	if !ok {
		return nil // already cleaned up; idempotent no-op
	}

	if !force {
		if dirty, err := m.isDirty(meta.WorktreePath); err != nil {
			return fmt.Errorf("checking worktree cleanliness for %s: %w", taskID, err)
		} else if dirty {
			return fmt.Errorf("%s: %w", taskID, model.ErrDirtyWorktree)
		}
	}

	args := []string{"worktree", "remove", meta.WorktreePath}
	if force {
		args = []string{"worktree", "remove", "--force", meta.WorktreePath}
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = m.config.RepoPath
	if output, err := cmd.CombinedOutput(); err != nil && force {
		return fmt.Errorf("force-removing worktree for %s: %w (output: %s)", taskID, err, string(output))
	} else if err != nil {
		return fmt.Errorf("removing worktree for %s: %w (output: %s)", taskID, err, string(output))
	}

	if deleteBranch {
		flag := "-d"
		if force {
			flag = "-D"
		}
		branchCmd := exec.Command("git", "branch", flag, meta.BranchName)
		branchCmd.Dir = m.config.RepoPath
		if output, err := branchCmd.CombinedOutput(); err != nil {
			return fmt.Errorf("deleting branch %s: %w (output: %s)", meta.BranchName, err, string(output))
		}
	}

	return m.idx.delete(taskID)
}

// ForceCleanup is Cleanup with force=true, delete_branch=true, surfacing
// each failing step rather than stopping at the first.
func (m *Manager) ForceCleanup(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.idx.get(taskID)
	if !ok {
		return nil
	}

	var errs []string
	removeCmd := exec.Command("git", "worktree", "remove", "--force", meta.WorktreePath)
	removeCmd.Dir = m.config.RepoPath
	if output, err := removeCmd.CombinedOutput(); err != nil {
		errs = append(errs, fmt.Sprintf("worktree remove: %v (%s)", err, string(output)))
	}

	branchCmd := exec.Command("git", "branch", "-D", meta.BranchName)
	branchCmd.Dir = m.config.RepoPath
	if output, err := branchCmd.CombinedOutput(); err != nil {
		errs = append(errs, fmt.Sprintf("branch delete: %v (%s)", err, string(output)))
	}

	if delErr := m.idx.delete(taskID); delErr != nil {
		errs = append(errs, fmt.Sprintf("index update: %v", delErr))
	}

	if len(errs) > 0 {
		return fmt.Errorf("force cleanup for %s: %s", taskID, strings.Join(errs, "; "))
	}
	return nil
}

func (m *Manager) isDirty(worktreePath string) (bool, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = worktreePath
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// List returns the persisted WorktreeMetadata entries, optionally filtered
// by status. An empty statusFilter returns everything.
func (m *Manager) List(statusFilter model.WorktreeStatus) []model.WorktreeMetadata {
	return m.idx.list(statusFilter)
}

// Prune cleans up stale worktree administrative metadata in the underlying
// VCS (git worktree prune), independent of this package's own index.
func (m *Manager) Prune() error {
	cmd := exec.Command("git", "worktree", "prune")
	cmd.Dir = m.config.RepoPath
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pruning worktrees: %w (output: %s)", err, string(output))
	}
	return nil
}

// Reconcile queries the VCS for actual worktrees and reconciles them
// against the persisted index: entries present in the VCS but missing from
// the index are adopted as stale; entries in the index but missing from
// the VCS are marked abandoned.
func (m *Manager) Reconcile() error {
	vcsWorktrees, err := m.listVCSWorktrees()
	if err != nil {
		return fmt.Errorf("listing VCS worktrees: %w", err)
	}

	vcsByTask := make(map[string]Info, len(vcsWorktrees))
	for _, wt := range vcsWorktrees {
		if wt.TaskID != "" {
			vcsByTask[wt.TaskID] = wt
		}
	}

	snapshot := m.idx.snapshot()

	for taskID, wt := range vcsByTask {
		if _, ok := snapshot[taskID]; !ok {
			meta := &model.WorktreeMetadata{
				TaskID:       taskID,
				WorktreePath: wt.Path,
				BranchName:   wt.Branch,
				CreatedAt:    time.Now(),
				Creator:      m.config.Creator,
				Status:       model.WorktreeStale,
			}
			if err := m.idx.put(meta); err != nil {
				return fmt.Errorf("adopting stale worktree %s: %w", taskID, err)
			}
		}
	}

	for taskID, meta := range snapshot {
		if meta.Status != model.WorktreeActive {
			continue
		}
		if _, ok := vcsByTask[taskID]; !ok {
			updated := *meta
			updated.Status = model.WorktreeAbandoned
			if err := m.idx.put(&updated); err != nil {
				return fmt.Errorf("marking abandoned worktree %s: %w", taskID, err)
			}
		}
	}

	return nil
}

func (m *Manager) listVCSWorktrees() ([]Info, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = m.config.RepoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w (output: %s)", err, string(output))
	}

	var worktrees []Info
	var current Info

	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = Info{}
			}
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			branch := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(branch, "refs/heads/")
			if strings.HasPrefix(current.Branch, "autonomous/") {
				current.TaskID = strings.TrimPrefix(current.Branch, "autonomous/")
			}
		}
	}
	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	return worktrees, nil
}
