package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*SessionConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.config/scaffold/config.json
// Project: .scaffold/config.json (relative to cwd)
func LoadDefault() (*SessionConfig, error) {
	return LoadWithConfigOverride("")
}

// LoadWithConfigOverride is LoadDefault, except a non-empty configOverride
// replaces the conventional project-config path — the effect of a
// `--config <path>` CLI flag.
func LoadWithConfigOverride(configOverride string) (*SessionConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".config", "scaffold", "config.json")
	projectPath := filepath.Join(".scaffold", "config.json")
	if configOverride != "" {
		projectPath = configOverride
	}

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and overlays its non-zero fields
// onto base. Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *SessionConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded SessionConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.RepoPath != "" {
		base.RepoPath = loaded.RepoPath
	}
	if loaded.BacklogDir != "" {
		base.BacklogDir = loaded.BacklogDir
	}
	if loaded.SessionDir != "" {
		base.SessionDir = loaded.SessionDir
	}
	if loaded.WorktreeRoot != "" {
		base.WorktreeRoot = loaded.WorktreeRoot
	}
	if loaded.HistoryDBPath != "" {
		base.HistoryDBPath = loaded.HistoryDBPath
	}
	if loaded.BaseBranch != "" {
		base.BaseBranch = loaded.BaseBranch
	}
	if loaded.MaxTasks != 0 {
		base.MaxTasks = loaded.MaxTasks
	}
	if loaded.MaxConcurrent != 0 {
		base.MaxConcurrent = loaded.MaxConcurrent
	}
	if loaded.MaxCostUSD != 0 {
		base.MaxCostUSD = loaded.MaxCostUSD
	}
	if loaded.MaxTimeHours != 0 {
		base.MaxTimeHours = loaded.MaxTimeHours
	}
	if loaded.PerTaskTimeoutSec != 0 {
		base.PerTaskTimeoutSec = loaded.PerTaskTimeoutSec
	}
	if len(loaded.Labels) > 0 {
		base.Labels = loaded.Labels
	}
	if loaded.DryRun {
		base.DryRun = true
	}

	return nil
}
