package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentscaffold/scaffold/internal/config"
	"github.com/agentscaffold/scaffold/internal/orchestrator"
)

func buildOrchestrator(ctx context.Context, cfg *config.SessionConfig, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(ctx, cfg, logger)
}

// runWithForceKill runs orch.Run until it returns, canceling its context on
// the first SIGINT/SIGTERM so the current wave drains cleanly, and calling
// orch.KillAll on a second signal so an impatient operator is never stuck
// waiting out a hung handler subprocess.
func runWithForceKill(parent context.Context, orch *orchestrator.Orchestrator, logger *slog.Logger, resumeSessionID string) (*orchestrator.SessionSummary, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-sigCh:
		case <-done:
			return
		}
		logger.Warn("shutdown signal received, finishing in-flight tasks")
		cancel()

		select {
		case <-sigCh:
			logger.Warn("second shutdown signal received, force-killing subprocesses")
			orch.KillAll()
		case <-done:
		}
	}()

	return orch.Run(ctx, resumeSessionID)
}
