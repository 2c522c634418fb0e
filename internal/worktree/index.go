package worktree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentscaffold/scaffold/internal/model"
)

// index is the durable record of active (and recently-transitioned)
// worktrees, persisted as a single JSON object keyed by task_id so a
// restart can see prior worktrees without re-scanning the VCS.
type index struct {
	mu      sync.Mutex
	path    string
	entries map[string]*model.WorktreeMetadata
}

func newIndex(path string) (*index, error) {
	idx := &index{path: path, entries: make(map[string]*model.WorktreeMetadata)}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *index) load() error {
	data, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading worktree index %s: %w", idx.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	var entries map[string]*model.WorktreeMetadata
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%s: %w: %v", idx.path, model.ErrRecordInvalid, err)
	}
	idx.entries = entries
	return nil
}

// save must be called with idx.mu held.
func (idx *index) save() error {
	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return fmt.Errorf("creating worktree index directory: %w", err)
	}
	data, err := json.MarshalIndent(idx.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling worktree index: %w", err)
	}
	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing worktree index: %w", err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("renaming worktree index: %w", err)
	}
	return nil
}

func (idx *index) get(taskID string) (*model.WorktreeMetadata, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m, ok := idx.entries[taskID]
	return m, ok
}

func (idx *index) put(meta *model.WorktreeMetadata) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[meta.TaskID] = meta
	return idx.save()
}

func (idx *index) delete(taskID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, taskID)
	return idx.save()
}

func (idx *index) countActive() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := 0
	for _, m := range idx.entries {
		if m.Status == model.WorktreeActive {
			n++
		}
	}
	return n
}

func (idx *index) list(statusFilter model.WorktreeStatus) []model.WorktreeMetadata {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var out []model.WorktreeMetadata
	for _, m := range idx.entries {
		if statusFilter != "" && m.Status != statusFilter {
			continue
		}
		out = append(out, *m)
	}
	return out
}

func (idx *index) snapshot() map[string]*model.WorktreeMetadata {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make(map[string]*model.WorktreeMetadata, len(idx.entries))
	for k, v := range idx.entries {
		c := *v
		out[k] = &c
	}
	return out
}
