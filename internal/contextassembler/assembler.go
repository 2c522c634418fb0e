// Package contextassembler composes the single prompt handed to a coding
// agent: project instructions, a pruned repository snapshot, recent
// history, and the task specification itself. Every step is best-effort;
// assembly never fails outright, it degrades to a minimal prompt instead.
package contextassembler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/vcs"
)

// instructionFileNames is checked in order; the first one present under the
// worktree root is used as the system-instructions block.
var instructionFileNames = []string{"AGENTS.md", "CLAUDE.md", "CONTRIBUTING.md"}

// excludedDirs are never descended into when building the file-tree snapshot.
var excludedDirs = map[string]bool{
	".git":         true,
	".scaffold":    true,
	"vendor":       true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
}

const (
	instructionsMaxLines = 200
	treeMaxDepth         = 3
	logMaxLines          = 10
)

// Assembler builds prompts for ClaudeCodeHandler, optionally enriching them
// with VCS history when an Adapter is available.
type Assembler struct {
	VCS vcs.Adapter
}

// New builds an Assembler. A nil adapter degrades the revision-log section
// silently, matching the "never raise to caller" contract.
func New(adapter vcs.Adapter) *Assembler {
	return &Assembler{VCS: adapter}
}

// Assemble composes the full prompt for task inside worktreePath. On any
// internal failure it falls back to Minimal rather than propagating an
// error, since a missing instructions file or an unreadable tree is not a
// reason to refuse to run the task at all.
func (a *Assembler) Assemble(ctx context.Context, task model.TaskSpec, worktreePath string) (prompt string) {
	defer func() {
		// A WalkDir callback or VCS adapter panicking on a malformed
		// worktree must not take the whole orchestrator down with it.
		if r := recover(); r != nil {
			prompt = Minimal(task, worktreePath)
		}
	}()

	var b strings.Builder

	if instr := systemInstructions(worktreePath); instr != "" {
		b.WriteString("## System Instructions\n\n")
		b.WriteString(instr)
		b.WriteString("\n\n")
	}

	b.WriteString("## Repository Snapshot\n\n")
	b.WriteString("### File tree\n\n")
	b.WriteString(fileTreeSnapshot(worktreePath))
	b.WriteString("\n")

	if a.VCS != nil {
		if log := a.revisionLog(ctx, worktreePath); log != "" {
			b.WriteString("### Recent history\n\n")
			b.WriteString(log)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## Task\n\n")
	b.WriteString(taskBlock(task))

	b.WriteString("\n## Execution Environment\n\n")
	b.WriteString(fmt.Sprintf("worktree_path: %s\ntask_id: %s\n", worktreePath, task.TaskID))

	b.WriteString("\n## Instructions\n\n")
	b.WriteString("Execute the changes required to satisfy every acceptance criterion above. " +
		"Commit your work as you go. Make sure the project's tests pass before finishing.\n")

	out := b.String()
	if strings.TrimSpace(out) == "" {
		return Minimal(task, worktreePath)
	}
	return out
}

// Minimal is the degrade-to floor: task id, title, description, and
// worktree path, with no repository or history context at all.
func Minimal(task model.TaskSpec, worktreePath string) string {
	return fmt.Sprintf("Task %s: %s\n\n%s\n\nworktree_path: %s\n",
		task.TaskID, task.Title, task.Description, worktreePath)
}

func systemInstructions(worktreePath string) string {
	for _, name := range instructionFileNames {
		data, err := os.ReadFile(filepath.Join(worktreePath, name))
		if err != nil {
			continue
		}
		lines := strings.Split(string(data), "\n")
		if len(lines) > instructionsMaxLines {
			lines = lines[:instructionsMaxLines]
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

func fileTreeSnapshot(root string) string {
	var lines []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort snapshot, skip unreadable entries
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			if depth >= treeMaxDepth {
				return filepath.SkipDir
			}
		}
		if depth > treeMaxDepth {
			return nil
		}
		indent := strings.Repeat("  ", depth-1)
		name := d.Name()
		if d.IsDir() {
			name += "/"
		}
		lines = append(lines, indent+name)
		return nil
	})
	if err != nil || len(lines) == 0 {
		return "(unavailable)\n"
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}

func (a *Assembler) revisionLog(ctx context.Context, worktreePath string) string {
	logCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	shas, err := a.VCS.LogShortSHAs(logCtx, worktreePath, "")
	if err != nil || len(shas) == 0 {
		return ""
	}
	if len(shas) > logMaxLines {
		shas = shas[:logMaxLines]
	}
	return strings.Join(shas, "\n") + "\n"
}

func taskBlock(task model.TaskSpec) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("id: %s\n", task.TaskID))
	b.WriteString(fmt.Sprintf("title: %s\n", task.Title))
	b.WriteString(fmt.Sprintf("priority: %s\n", task.Priority))
	if len(task.Labels) > 0 {
		b.WriteString(fmt.Sprintf("labels: %s\n", strings.Join(task.Labels, ", ")))
	}
	b.WriteString(fmt.Sprintf("\n%s\n", task.Description))
	if len(task.AcceptanceCriteria) > 0 {
		b.WriteString("\nAcceptance criteria:\n")
		for _, c := range task.AcceptanceCriteria {
			b.WriteString(fmt.Sprintf("- [ ] %s\n", c))
		}
	}
	return b.String()
}
