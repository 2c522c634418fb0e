// Package fetcher selects eligible tasks from the backlog, scores them by
// priority, and caches the unfiltered candidate list for a short TTL so a
// busy session doesn't re-scan the backlog on every scheduling tick.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/agentscaffold/scaffold/internal/backlog"
	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/scheduler"
)

const defaultCacheTTL = 60 * time.Second

var priorityBase = map[model.Priority]float64{
	model.PriorityHigh:   10,
	model.PriorityMedium: 5,
	model.PriorityLow:    1,
}

var labelAdjustments = map[string]float64{
	"critical":    5,
	"quick-win":   3,
	"user-action": -10,
}

// PriorityScore computes the deterministic priority score for a task as of
// now: base-by-priority, plus additive per-label bonuses/penalties, plus an
// age bonus capped at 2.0, floored at 0.
func PriorityScore(task model.TaskSpec, now time.Time) float64 {
	score := priorityBase[task.Priority]
	for _, label := range task.Labels {
		score += labelAdjustments[label]
	}
	if task.CreatedDate != nil {
		ageDays := now.Sub(*task.CreatedDate).Hours() / 24
		score += math.Min(ageDays/30, 2.0)
	}
	if score < 0 {
		return 0
	}
	return score
}

type cacheEntry struct {
	fetchedAt time.Time
	tasks     []model.TaskSpec
}

// Fetcher selects eligible tasks (status ToDo, dependencies satisfied),
// scores them, and returns them ordered by descending score.
type Fetcher struct {
	adapter backlog.Adapter
	ttl     time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	cache *cacheEntry
}

// New builds a Fetcher. ttl of zero uses the default 60s TTL.
func New(adapter backlog.Adapter, ttl time.Duration) *Fetcher {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Fetcher{adapter: adapter, ttl: ttl, logger: slog.Default()}
}

// WithLogger overrides the Fetcher's logger, used by the composition root to
// route cycle-detection warnings through the session's own handler/format.
func (f *Fetcher) WithLogger(logger *slog.Logger) *Fetcher {
	f.logger = logger
	return f
}

// InvalidateCache clears the cached candidate list, forcing the next
// FetchEligible call to re-query the backlog.
func (f *Fetcher) InvalidateCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = nil
}

// FetchEligible returns up to maxTasks candidates, restricted to labels if
// non-empty, ordered by descending priority score (ties broken by task_id
// ascending). Side-effect free to the backlog: errors while scoring or
// fetching individual records are logged by the caller and omitted here,
// never raised.
func (f *Fetcher) FetchEligible(ctx context.Context, maxTasks int, labels []string) ([]model.TaskSpec, error) {
	candidates, err := f.candidates(ctx)
	if err != nil {
		return nil, err
	}

	filtered := candidates
	if len(labels) > 0 {
		filtered = make([]model.TaskSpec, 0, len(candidates))
		for _, t := range candidates {
			if hasAnyLabel(t, labels) {
				filtered = append(filtered, t)
			}
		}
	}

	now := time.Now()
	sort.SliceStable(filtered, func(i, j int) bool {
		si, sj := PriorityScore(filtered[i], now), PriorityScore(filtered[j], now)
		if si != sj {
			return si > sj
		}
		return filtered[i].TaskID < filtered[j].TaskID
	})

	if maxTasks > 0 && len(filtered) > maxTasks {
		filtered = filtered[:maxTasks]
	}
	return filtered, nil
}

// candidates returns the cached (status=ToDo, dependencies_satisfied=true)
// list, refreshing it from the backlog if the TTL has elapsed.
func (f *Fetcher) candidates(ctx context.Context) ([]model.TaskSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cache != nil && time.Since(f.cache.fetchedAt) < f.ttl {
		return f.cache.tasks, nil
	}

	tasks, err := f.adapter.ListTasks(ctx, backlog.ListFilter{
		Status:                model.StatusToDo,
		DependenciesSatisfied: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching eligible tasks: %w", err)
	}

	tasks = f.dropCyclicDependencies(tasks)

	f.cache = &cacheEntry{fetchedAt: time.Now(), tasks: tasks}
	return tasks, nil
}

// dropCyclicDependencies runs a DAG validity check over the fetched batch. A
// cycle among not-yet-Done tasks can never become eligible; the caller's
// dependency filter already requires dependencies to be Done, so a cycle
// here means a Done-status loop was mis-recorded upstream. That's logged
// once per fetch and the whole batch is conservatively dropped, rather than
// guessing which side of the cycle is "first" or leaving every member
// perpetually blocked with no diagnosis.
func (f *Fetcher) dropCyclicDependencies(tasks []model.TaskSpec) []model.TaskSpec {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.TaskID] = true
	}

	dag := scheduler.NewDAG()
	for _, t := range tasks {
		var deps []string
		for _, dep := range t.Dependencies {
			if known[dep] {
				deps = append(deps, dep)
			}
		}
		if err := dag.Add(t.TaskID, deps); err != nil {
			// Duplicate task IDs in one backlog fetch indicate a corrupt
			// adapter read; skip cycle detection rather than fail the fetch.
			f.logger.Warn("skipping dependency cycle check", "error", err)
			return tasks
		}
	}

	if _, err := dag.Validate(); err != nil {
		f.logger.Warn("dependency cycle detected in fetched batch, dropping batch", "error", err)
		return nil
	}
	return tasks
}

func hasAnyLabel(t model.TaskSpec, labels []string) bool {
	for _, l := range labels {
		if t.HasLabel(l) {
			return true
		}
	}
	return false
}
