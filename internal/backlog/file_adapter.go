package backlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/agentscaffold/scaffold/internal/model"
)

// FileAdapter stores one YAML document per task under Dir, named
// "<task_id>.yaml". It is the only concrete Adapter implementation shipped
// with this module; additional adapters (issue-tracker APIs, etc.) are
// expected to satisfy the same interface.
type FileAdapter struct {
	mu  sync.Mutex
	dir string
}

// NewFileAdapter creates a FileAdapter rooted at dir, creating dir if it
// does not already exist.
func NewFileAdapter(dir string) (*FileAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backlog directory %s: %w", dir, err)
	}
	return &FileAdapter{dir: dir}, nil
}

func (a *FileAdapter) taskPath(taskID string) string {
	return filepath.Join(a.dir, taskID+".yaml")
}

func (a *FileAdapter) readTask(taskID string) (model.TaskSpec, error) {
	data, err := os.ReadFile(a.taskPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return model.TaskSpec{}, fmt.Errorf("%s: %w", taskID, model.ErrNotFound)
		}
		return model.TaskSpec{}, fmt.Errorf("reading task %s: %w", taskID, err)
	}
	var spec model.TaskSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return model.TaskSpec{}, fmt.Errorf("%s: %w: %v", taskID, model.ErrRecordInvalid, err)
	}
	return spec, nil
}

func (a *FileAdapter) writeTask(spec model.TaskSpec) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshaling task %s: %w", spec.TaskID, err)
	}
	path := a.taskPath(spec.TaskID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing task %s: %w", spec.TaskID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming task %s: %w", spec.TaskID, err)
	}
	return nil
}

// ListTasks implements Adapter.
func (a *FileAdapter) ListTasks(ctx context.Context, filter ListFilter) ([]model.TaskSpec, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("listing backlog directory: %w", err)
	}

	all := make(map[string]model.TaskSpec)
	var out []model.TaskSpec
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		taskID := strings.TrimSuffix(e.Name(), ".yaml")
		spec, err := a.readTask(taskID)
		if err != nil {
			continue // malformed records are omitted, never raised
		}
		all[taskID] = spec
	}

	for _, spec := range all {
		if filter.Status != "" && spec.Status != filter.Status {
			continue
		}
		if len(filter.Labels) > 0 && !hasAnyLabel(spec, filter.Labels) {
			continue
		}
		if filter.DependenciesSatisfied && !depsSatisfied(spec, all) {
			continue
		}
		out = append(out, spec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func hasAnyLabel(spec model.TaskSpec, labels []string) bool {
	for _, l := range labels {
		if spec.HasLabel(l) {
			return true
		}
	}
	return false
}

func depsSatisfied(spec model.TaskSpec, all map[string]model.TaskSpec) bool {
	for _, dep := range spec.Dependencies {
		depSpec, ok := all[dep]
		if !ok || depSpec.Status != model.StatusDone {
			return false
		}
	}
	return true
}

// GetTask implements Adapter.
func (a *FileAdapter) GetTask(ctx context.Context, taskID string) (model.TaskSpec, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readTask(taskID)
}

// UpdateStatus implements Adapter.
func (a *FileAdapter) UpdateStatus(ctx context.Context, taskID string, newStatus model.TaskStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	spec, err := a.readTask(taskID)
	if err != nil {
		return err
	}
	if spec.Status == newStatus {
		return nil // no-op per SPEC_FULL.md §8
	}
	spec.Status = newStatus
	return a.writeTask(spec)
}

// AppendNotes implements Adapter. Not idempotent by design.
func (a *FileAdapter) AppendNotes(ctx context.Context, taskID string, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	spec, err := a.readTask(taskID)
	if err != nil {
		return err
	}
	if spec.ImplementationNotes == "" {
		spec.ImplementationNotes = text
	} else {
		spec.ImplementationNotes = spec.ImplementationNotes + "\n" + text
	}
	return a.writeTask(spec)
}
