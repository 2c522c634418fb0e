package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentscaffold/scaffold/internal/config"
	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/vcs"
	"github.com/agentscaffold/scaffold/internal/worktree"
)

var worktreeFlagCfg = config.DefaultConfig()

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Inspect and reclaim task worktrees",
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked worktrees",
	RunE:  runWorktreeList,
}

var worktreeCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove worktrees left over from stale or abandoned tasks",
	RunE:  runWorktreeCleanup,
}

func init() {
	config.RegisterFlags(worktreeCmd.PersistentFlags(), worktreeFlagCfg)
	worktreeCmd.AddCommand(worktreeListCmd, worktreeCleanupCmd)
}

func buildWorktreeManager(cfg *config.SessionConfig) (*worktree.Manager, error) {
	return worktree.NewManager(worktree.ManagerConfig{
		RepoPath:      cfg.RepoPath,
		BaseBranch:    cfg.BaseBranch,
		WorktreeRoot:  cfg.WorktreeRoot,
		MaxConcurrent: cfg.MaxConcurrent,
		Creator:       "scaffold",
	}, vcs.NewGitGHAdapter())
}

func runWorktreeList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), worktreeFlagCfg)
	if err != nil {
		return err
	}
	mgr, err := buildWorktreeManager(cfg)
	if err != nil {
		return fmt.Errorf("opening worktree manager: %w", err)
	}

	entries := mgr.List("")
	if len(entries) == 0 {
		cmd.Println("no tracked worktrees")
		return nil
	}
	for _, e := range entries {
		cmd.Printf("%-30s %-10s %-40s %s\n", e.TaskID, e.Status, e.BranchName, e.WorktreePath)
	}
	return nil
}

// runWorktreeCleanup reconciles the index against the VCS, force-removes
// every worktree the reconcile pass found stale or abandoned, and runs
// `git worktree prune` to drop any leftover administrative metadata.
func runWorktreeCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), worktreeFlagCfg)
	if err != nil {
		return err
	}
	mgr, err := buildWorktreeManager(cfg)
	if err != nil {
		return fmt.Errorf("opening worktree manager: %w", err)
	}

	if err := mgr.Reconcile(); err != nil {
		cmd.PrintErrf("reconcile: %v\n", err)
	}

	var removed int
	for _, status := range []model.WorktreeStatus{model.WorktreeStale, model.WorktreeAbandoned} {
		for _, e := range mgr.List(status) {
			if err := mgr.ForceCleanup(e.TaskID); err != nil {
				cmd.PrintErrf("cleaning up %s: %v\n", e.TaskID, err)
				continue
			}
			removed++
		}
	}

	if err := mgr.Prune(); err != nil {
		return fmt.Errorf("pruning worktree admin metadata: %w", err)
	}

	remaining := mgr.List(model.WorktreeActive)
	cmd.Printf("removed %d worktree(s); %d active worktree(s) remain\n", removed, len(remaining))
	return nil
}
