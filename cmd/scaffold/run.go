package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentscaffold/scaffold/internal/config"
)

var (
	runFlagCfg      = config.DefaultConfig()
	resumeSessionID string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one autonomous session against the backlog",
	RunE:  runRun,
}

func init() {
	config.RegisterFlags(runCmd.Flags(), runFlagCfg)
	runCmd.Flags().StringVar(&resumeSessionID, "resume", "", "Resume a previously persisted session by ID")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), runFlagCfg)
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

	summary, runErr := runWithForceKill(ctx, orch, logger, resumeSessionID)
	if runErr != nil {
		return fmt.Errorf("running session: %w", runErr)
	}

	logger.Info("session finished",
		"session_id", summary.SessionID,
		"completed", len(summary.Completed),
		"failed", len(summary.Failed),
		"blocked", len(summary.Blocked),
		"cost_usd", summary.TotalCostUSD,
		"duration", summary.Duration.String(),
		"abort_reason", summary.AbortReason,
	)

	os.Exit(summary.ExitCode())
	return nil
}
