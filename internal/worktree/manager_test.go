package worktree

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/vcs"
)

// setupTestRepo creates a temporary git repository for testing.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	repoPath := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoPath
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v (output: %s)", args, err, string(output))
		}
	}

	run("init")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")
	run("checkout", "-b", "main")

	if err := os.WriteFile(filepath.Join(repoPath, "README.md"), []byte("# Test Repo\n"), 0o644); err != nil {
		t.Fatalf("failed to write initial file: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "initial commit")

	return repoPath
}

func newTestManager(t *testing.T, repoPath string, maxConcurrent int) *Manager {
	t.Helper()
	cfg := ManagerConfig{
		RepoPath:      repoPath,
		BaseBranch:    "main",
		WorktreeRoot:  t.TempDir(),
		MaxConcurrent: maxConcurrent,
		IndexPath:     filepath.Join(t.TempDir(), "worktrees.json"),
		Creator:       "test",
	}
	mgr, err := NewManager(cfg, vcs.NewGitGHAdapter())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mgr
}

func TestCreate(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	info, err := mgr.Create("test-task-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := os.Stat(info.Path); os.IsNotExist(err) {
		t.Errorf("worktree directory does not exist: %s", info.Path)
	}
	if info.TaskID != "test-task-1" {
		t.Errorf("expected TaskID 'test-task-1', got '%s'", info.TaskID)
	}
	if info.Branch != "autonomous/test-task-1" {
		t.Errorf("expected Branch 'autonomous/test-task-1', got '%s'", info.Branch)
	}
	if info.Head == "" {
		t.Error("Head commit should not be empty")
	}

	entries := mgr.List("")
	if len(entries) != 1 || entries[0].Status != model.WorktreeActive {
		t.Errorf("expected one active WorktreeMetadata entry, got %v", entries)
	}
}

func TestCreateDuplicateIDFailsAlreadyExists(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	if _, err := mgr.Create("duplicate-task"); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := mgr.Create("duplicate-task")
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateAtLimitFailsLimitReached(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 1)

	if _, err := mgr.Create("first"); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := mgr.Create("second")
	if !errors.Is(err, model.ErrLimitReached) {
		t.Errorf("expected ErrLimitReached, got %v", err)
	}
}

func TestProbeMergeConflictsCleanBranch(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	info, err := mgr.Create("merge-clean-task")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	newFile := filepath.Join(info.Path, "feature.txt")
	if err := os.WriteFile(newFile, []byte("new feature\n"), 0o644); err != nil {
		t.Fatalf("failed to write new file: %v", err)
	}
	for _, args := range [][]string{{"add", "feature.txt"}, {"commit", "-m", "add feature"}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = info.Path
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v (%s)", args, err, output)
		}
	}

	probe, err := mgr.ProbeMergeConflicts("merge-clean-task")
	if err != nil {
		t.Fatalf("ProbeMergeConflicts failed: %v", err)
	}
	if !probe.ConflictFree {
		t.Errorf("expected conflict-free probe, got conflicts: %v", probe.ConflictedPaths)
	}

	// The probe must never perform a real merge or checkout: main still has
	// no trace of feature.txt in its own working tree.
	if _, err := os.Stat(filepath.Join(repoPath, "feature.txt")); !os.IsNotExist(err) {
		t.Error("ProbeMergeConflicts must not mutate the base checkout")
	}
}

func TestCleanupRemovesWorktreeAndIndexEntry(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	info, err := mgr.Create("cleanup-task")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := mgr.Cleanup("cleanup-task", true, true); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	if _, err := os.Stat(info.Path); !os.IsNotExist(err) {
		t.Error("worktree directory still exists after cleanup")
	}
	if len(mgr.List("")) != 0 {
		t.Error("expected index to be empty after cleanup")
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	if _, err := mgr.Create("idempotent-task"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := mgr.Cleanup("idempotent-task", true, true); err != nil {
		t.Fatalf("first Cleanup failed: %v", err)
	}
	if err := mgr.Cleanup("idempotent-task", true, true); err != nil {
		t.Errorf("second Cleanup should be a no-op, got error: %v", err)
	}
}

func TestCleanupWithoutForceFailsOnDirtyWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	info, err := mgr.Create("dirty-task")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(info.Path, "scratch.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write scratch file: %v", err)
	}

	err = mgr.Cleanup("dirty-task", false, false)
	if !errors.Is(err, model.ErrDirtyWorktree) {
		t.Errorf("expected ErrDirtyWorktree, got %v", err)
	}
}

func TestForceCleanupSucceedsOnDirtyWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	info, err := mgr.Create("force-cleanup-task")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(info.Path, "dirty.txt"), []byte("uncommitted\n"), 0o644); err != nil {
		t.Fatalf("failed to create dirty file: %v", err)
	}

	if err := mgr.ForceCleanup("force-cleanup-task"); err != nil {
		t.Fatalf("ForceCleanup failed: %v", err)
	}
	if _, err := os.Stat(info.Path); !os.IsNotExist(err) {
		t.Error("worktree directory still exists after force cleanup")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	if _, err := mgr.Create("list-task-1"); err != nil {
		t.Fatalf("Create task 1 failed: %v", err)
	}
	if _, err := mgr.Create("list-task-2"); err != nil {
		t.Fatalf("Create task 2 failed: %v", err)
	}
	if err := mgr.UpdateStatus("list-task-2", model.WorktreeMerged, "https://example.com/pull/1"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	active := mgr.List(model.WorktreeActive)
	if len(active) != 1 || active[0].TaskID != "list-task-1" {
		t.Errorf("expected one active entry for list-task-1, got %v", active)
	}

	merged := mgr.List(model.WorktreeMerged)
	if len(merged) != 1 || merged[0].PRURL != "https://example.com/pull/1" {
		t.Errorf("expected one merged entry with PR URL, got %v", merged)
	}
}

func TestReconcileMarksMissingVCSWorktreesAbandoned(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	info, err := mgr.Create("vanished-task")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Simulate a crash that left the directory gone but the git admin
	// metadata and our own index untouched.
	if err := os.RemoveAll(info.Path); err != nil {
		t.Fatalf("failed to remove worktree directory: %v", err)
	}
	prune := exec.Command("git", "worktree", "prune")
	prune.Dir = repoPath
	if output, err := prune.CombinedOutput(); err != nil {
		t.Fatalf("git worktree prune failed: %v (%s)", err, output)
	}

	if err := mgr.Reconcile(); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	entries := mgr.List(model.WorktreeAbandoned)
	if len(entries) != 1 || entries[0].TaskID != "vanished-task" {
		t.Errorf("expected vanished-task marked abandoned, got %v", entries)
	}
}

func TestBranchAndPathCollisionGetsNumericSuffix(t *testing.T) {
	repoPath := setupTestRepo(t)
	mgr := newTestManager(t, repoPath, 3)

	_, base := mgr.branchAndPath("collide")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatalf("failed to pre-create collision path: %v", err)
	}

	_, path := mgr.branchAndPath("collide")
	if path == base {
		t.Errorf("expected a numeric-suffixed path when %s is already occupied", base)
	}
	if !strings.HasSuffix(path, "-2") {
		t.Errorf("expected first collision to be resolved with a -2 suffix, got %s", path)
	}
}
