package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/agentscaffold/scaffold/internal/config"
	"github.com/agentscaffold/scaffold/internal/tui"
)

var watchFlagCfg = config.DefaultConfig()

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a session with a live terminal status view",
	RunE:  runWatch,
}

func init() {
	config.RegisterFlags(watchCmd.Flags(), watchFlagCfg)
	watchCmd.Flags().StringVar(&resumeSessionID, "resume", "", "Resume a previously persisted session by ID")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), watchFlagCfg)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx := context.Background()

	orch, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer orch.Close()

	program := tea.NewProgram(tui.New(orch.Events, cfg), tea.WithAltScreen())

	resultCh := make(chan error, 1)
	go func() {
		summary, runErr := runWithForceKill(ctx, orch, logger, resumeSessionID)
		if runErr == nil {
			logger.Info("session finished",
				"session_id", summary.SessionID,
				"completed", len(summary.Completed),
				"failed", len(summary.Failed),
				"blocked", len(summary.Blocked),
				"abort_reason", summary.AbortReason,
			)
		}
		resultCh <- runErr
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running watch view: %w", err)
	}

	if runErr := <-resultCh; runErr != nil {
		return fmt.Errorf("running session: %w", runErr)
	}
	return nil
}
