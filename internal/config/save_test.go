package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := &SessionConfig{
		RepoPath:   "/repo",
		BaseBranch: "main",
		MaxTasks:   10,
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded SessionConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}

	if loaded.RepoPath != "/repo" {
		t.Errorf("Expected repo path '/repo', got '%s'", loaded.RepoPath)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	cfg := &SessionConfig{}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}

	parentDir := filepath.Dir(path)
	if _, err := os.Stat(parentDir); os.IsNotExist(err) {
		t.Fatalf("Parent directory was not created: %s", parentDir)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := &SessionConfig{
		RepoPath:          "/repo",
		BacklogDir:        "/repo/.scaffold/backlog",
		SessionDir:        "/repo/.scaffold/session",
		WorktreeRoot:      "/repo/.scaffold/worktrees",
		HistoryDBPath:     "/repo/.scaffold/history.db",
		BaseBranch:        "main",
		MaxTasks:          15,
		MaxConcurrent:     4,
		MaxCostUSD:        10.0,
		MaxTimeHours:      6.0,
		PerTaskTimeoutSec: 1800,
		Labels:            []string{"build", "fix"},
		DryRun:            true,
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.MaxTasks != 15 {
		t.Errorf("MaxTasks mismatch: got %d", loaded.MaxTasks)
	}
	if loaded.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent mismatch: got %d", loaded.MaxConcurrent)
	}
	if len(loaded.Labels) != 2 || loaded.Labels[0] != "build" {
		t.Errorf("Labels mismatch: got %v", loaded.Labels)
	}
	if !loaded.DryRun {
		t.Error("expected DryRun to round-trip as true")
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg1 := &SessionConfig{BaseBranch: "first-value"}
	if err := Save(cfg1, path); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	cfg2 := &SessionConfig{BaseBranch: "second-value"}
	if err := Save(cfg2, path); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded SessionConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if loaded.BaseBranch != "second-value" {
		t.Errorf("Expected 'second-value', got '%s'", loaded.BaseBranch)
	}
}
