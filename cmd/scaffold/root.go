package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agentscaffold/scaffold/internal/config"
)

var (
	configPath string
	logFormat  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "scaffold",
	Short:         "Autonomous task orchestrator",
	Long:          "scaffold fetches eligible backlog tasks, runs them through a coding-agent or manual handler in an isolated git worktree, and opens a draft PR for each success.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a project config file, overriding .scaffold/config.json")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", `Log output format: "text" or "json"`)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", `Log level: "debug", "info", "warn", or "error"`)

	rootCmd.AddCommand(runCmd, watchCmd, worktreeCmd, historyCmd, escalationsCmd, versionCmd)
}

// loadConfig assembles a SessionConfig from defaults, the project/global
// config files, environment variables, and fs's flags, in that precedence
// order (flags highest). flagCfg is the struct RegisterFlags bound the same
// flags to at registration time; cobra has already parsed args into it by
// the time a RunE runs, so any flag fs reports as Changed overrides
// everything else.
func loadConfig(fs *pflag.FlagSet, flagCfg *config.SessionConfig) (*config.SessionConfig, error) {
	cfg, err := config.LoadWithConfigOverride(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.ApplyEnvUnset(fs, cfg)

	if fs.Changed("dry-run") {
		cfg.DryRun = flagCfg.DryRun
	}
	if fs.Changed("max-tasks") {
		cfg.MaxTasks = flagCfg.MaxTasks
	}
	if fs.Changed("max-concurrent") {
		cfg.MaxConcurrent = flagCfg.MaxConcurrent
	}
	if fs.Changed("max-cost") {
		cfg.MaxCostUSD = flagCfg.MaxCostUSD
	}
	if fs.Changed("max-time") {
		cfg.MaxTimeHours = flagCfg.MaxTimeHours
	}
	if fs.Changed("labels") {
		cfg.Labels = flagCfg.Labels
	}
	return cfg, nil
}

// newLogger builds the process-wide structured logger from --log-format and
// --log-level, matching the JSON/text handler split log/slog offers: JSON
// for machine-consumed session logs, text for an operator's terminal.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown --log-level %q", logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch logFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown --log-format %q", logFormat)
	}
}
