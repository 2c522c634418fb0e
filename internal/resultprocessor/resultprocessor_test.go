package resultprocessor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/agentscaffold/scaffold/internal/backlog"
	"github.com/agentscaffold/scaffold/internal/history"
	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/vcs"
	"github.com/agentscaffold/scaffold/internal/worktree"
)

// fakeVCS is a stand-in for vcs.Adapter that never shells out to a real
// remote or PR-hosting CLI, so resultprocessor tests stay hermetic.
type fakeVCS struct {
	conflictFree bool
	conflicted   []string
	pushErr      error
	prURL        string
	prErr        error
	pushCalls    int
	prCalls      int
}

func (f *fakeVCS) Commit(ctx context.Context, worktreePath, message string) error { return nil }

func (f *fakeVCS) DiffNameOnly(ctx context.Context, worktreePath string) ([]string, error) {
	return nil, nil
}

func (f *fakeVCS) LogShortSHAs(ctx context.Context, worktreePath, sinceRef string) ([]string, error) {
	return nil, nil
}

func (f *fakeVCS) Push(ctx context.Context, worktreePath, branch string) (vcs.PushResult, error) {
	f.pushCalls++
	if f.pushErr != nil {
		return vcs.PushResult{}, f.pushErr
	}
	return vcs.PushResult{Pushed: true}, nil
}

func (f *fakeVCS) ProbeMergeConflicts(ctx context.Context, repoPath, baseBranch, branch string) (vcs.MergeProbe, error) {
	return vcs.MergeProbe{ConflictFree: f.conflictFree, ConflictedPaths: f.conflicted}, nil
}

func (f *fakeVCS) CreateDraftPR(ctx context.Context, worktreePath string, req vcs.PRRequest) (string, error) {
	f.prCalls++
	if f.prErr != nil {
		return "", f.prErr
	}
	return f.prURL, nil
}

func setupTestRepo(t *testing.T) string {
	t.Helper()
	repoPath := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoPath
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")
	run("checkout", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "README.md"), []byte("# test\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial commit")
	return repoPath
}

func newTestWorktreeManager(t *testing.T, repoPath string, adapter vcs.Adapter) (*worktree.Manager, *worktree.Info) {
	t.Helper()
	mgr, err := worktree.NewManager(worktree.ManagerConfig{
		RepoPath:      repoPath,
		BaseBranch:    "main",
		WorktreeRoot:  t.TempDir(),
		MaxConcurrent: 3,
		IndexPath:     filepath.Join(t.TempDir(), "worktrees.json"),
		Creator:       "test",
	}, adapter)
	require.NoError(t, err)
	info, err := mgr.Create("task-1")
	require.NoError(t, err)
	return mgr, info
}

func sampleTask() model.TaskSpec {
	return model.TaskSpec{
		TaskID:             "task-1",
		Title:              "BUILD: add retry logic",
		Description:        "Retry transient push failures.",
		Priority:           model.PriorityHigh,
		Labels:             []string{"build"},
		AcceptanceCriteria: []string{"Push retries once on transient failure"},
	}
}

func TestProcess_HappyPath(t *testing.T) {
	repoPath := setupTestRepo(t)
	fv := &fakeVCS{conflictFree: true, prURL: "https://example.com/pull/1"}
	mgr, info := newTestWorktreeManager(t, repoPath, fv)

	backlogDir := t.TempDir()
	adapter, err := backlog.NewFileAdapter(backlogDir)
	require.NoError(t, err)
	task := sampleTask()
	task.Status = model.StatusInProgress
	require.NoError(t, seedTask(backlogDir, task))

	hist, err := history.OpenMemory(context.Background())
	require.NoError(t, err)
	defer hist.Close()

	p := &Processor{Backlog: adapter, Worktrees: mgr, VCS: fv, History: hist, BaseBranch: "main", SessionID: "sess-1"}

	result := model.ExecutionResult{Success: true, Commits: []string{"abc1234"}, FilesChanged: []string{"a.py"}, TestsPassed: model.TestsPassed, CostUSD: 0.20}
	outcome := p.Process(context.Background(), task, info, result, "claude_code", time.Now())

	assert.True(t, outcome.Success)
	assert.Equal(t, "https://example.com/pull/1", outcome.PRURL)
	assert.Equal(t, 1, fv.pushCalls)
	assert.Equal(t, 1, fv.prCalls)

	got, err := adapter.GetTask(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)
	assert.Contains(t, got.ImplementationNotes, "https://example.com/pull/1")

	runs, err := hist.Query(context.Background(), history.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Equal(t, "https://example.com/pull/1", runs[0].PRURL)
}

func TestProcess_MergeConflictBlocksPush(t *testing.T) {
	repoPath := setupTestRepo(t)
	fv := &fakeVCS{conflictFree: false, conflicted: []string{"a.py"}}
	mgr, info := newTestWorktreeManager(t, repoPath, fv)

	backlogDir := t.TempDir()
	adapter, err := backlog.NewFileAdapter(backlogDir)
	require.NoError(t, err)
	task := sampleTask()
	task.Status = model.StatusInProgress
	require.NoError(t, seedTask(backlogDir, task))

	p := &Processor{Backlog: adapter, Worktrees: mgr, VCS: fv, BaseBranch: "main"}

	result := model.ExecutionResult{Success: true, CostUSD: 0.1}
	outcome := p.Process(context.Background(), task, info, result, "claude_code", time.Now())

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "merge conflicts")
	assert.Equal(t, 0, fv.pushCalls, "a conflicted branch must never be pushed")

	got, err := adapter.GetTask(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status, "status must not change on a blocked push")
}

func TestProcess_ManualHandlerBlocksTask(t *testing.T) {
	backlogDir := t.TempDir()
	adapter, err := backlog.NewFileAdapter(backlogDir)
	require.NoError(t, err)
	task := sampleTask()
	task.Labels = []string{"user-action"}
	task.Status = model.StatusInProgress
	require.NoError(t, seedTask(backlogDir, task))

	p := &Processor{Backlog: adapter}

	result := model.ExecutionResult{Success: false, Error: "requires manual action"}
	outcome := p.Process(context.Background(), task, &worktree.Info{TaskID: task.TaskID}, result, "manual", time.Now())

	assert.False(t, outcome.Success)
	assert.True(t, outcome.Blocked)

	got, err := adapter.GetTask(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, got.Status)
}

func TestProcess_HandlerFailureLeavesStatusUnchanged(t *testing.T) {
	backlogDir := t.TempDir()
	adapter, err := backlog.NewFileAdapter(backlogDir)
	require.NoError(t, err)
	task := sampleTask()
	task.Status = model.StatusInProgress
	require.NoError(t, seedTask(backlogDir, task))

	p := &Processor{Backlog: adapter}

	result := model.ExecutionResult{Success: false, Error: "build failed", Output: "some output"}
	outcome := p.Process(context.Background(), task, &worktree.Info{TaskID: task.TaskID}, result, "claude_code", time.Now())

	assert.False(t, outcome.Success)
	assert.False(t, outcome.Blocked)

	got, err := adapter.GetTask(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
}

func TestCommitType_MapsTitlePrefixes(t *testing.T) {
	cases := []struct {
		title    string
		wantType string
	}{
		{"BUILD: add feature", "feat"},
		{"FIX: broken thing", "fix"},
		{"TEST: add coverage", "test"},
		{"CLEANUP: remove dead code", "chore"},
		{"DOCS: update readme", "docs"},
		{"REFACTOR: simplify", "refactor"},
		{"Untagged title", "feat"},
	}
	for _, c := range cases {
		ctype, _ := commitType(c.title)
		assert.Equal(t, c.wantType, ctype, c.title)
	}
}

// seedTask writes task as a YAML document directly into dir, matching
// FileAdapter's on-disk layout ("<task_id>.yaml"), since Adapter exposes no
// create operation of its own: task records originate from the fetcher, not
// from the core.
func seedTask(dir string, task model.TaskSpec) error {
	data, err := yaml.Marshal(task)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, task.TaskID+".yaml"), data, 0o644)
}
