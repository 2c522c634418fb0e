package scheduler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// DAG tracks a batch of tasks and their dependency edges across a single
// orchestrator run, letting the worker pool ask "what can I start next?"
// without re-deriving eligibility from the backlog on every tick.
type DAG struct {
	mu         sync.RWMutex
	nodes      map[string]*Node
	dependents map[string][]string // taskID -> tasks that depend on it
}

// NewDAG creates an empty DAG.
func NewDAG() *DAG {
	return &DAG{
		nodes:      make(map[string]*Node),
		dependents: make(map[string][]string),
	}
}

// Add registers a task. Returns an error if taskID is already present.
func (d *DAG) Add(taskID string, dependsOn []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.nodes[taskID]; exists {
		return fmt.Errorf("task %q already in DAG", taskID)
	}

	d.nodes[taskID] = &Node{TaskID: taskID, DependsOn: append([]string(nil), dependsOn...)}
	for _, depID := range dependsOn {
		d.dependents[depID] = append(d.dependents[depID], taskID)
	}
	return nil
}

// Validate runs a topological sort over the batch, surfacing both cycles
// and dependencies that point outside the batch.
func (d *DAG) Validate() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for taskID, node := range d.nodes {
		for _, depID := range node.DependsOn {
			if _, exists := d.nodes[depID]; !exists {
				return nil, fmt.Errorf("task %q depends on %q, not in this batch", taskID, depID)
			}
		}
	}

	var edges []toposort.Edge
	for taskID, node := range d.nodes {
		if len(node.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, taskID})
			continue
		}
		for _, depID := range node.DependsOn {
			edges = append(edges, toposort.Edge{depID, taskID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency cycle in batch: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(d.nodes) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for taskID := range d.nodes {
			if !found[taskID] {
				missing = append(missing, taskID)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d task(s): %s", len(missing), strings.Join(missing, ", "))
	}
	return order, nil
}

// Eligible returns every Pending task whose dependencies have all reached
// Completed. A Failed dependency leaves its dependents Pending forever
// (matching SafetyRails' "Blocked by" semantics — there is no soft-fail
// mode here); the caller is expected to drop them from the batch once the
// session gives up on the blocking task.
func (d *DAG) Eligible() []*Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var eligible []*Node
	for _, node := range d.nodes {
		if node.Status != Pending {
			continue
		}
		ready := true
		for _, depID := range node.DependsOn {
			dep, ok := d.nodes[depID]
			if !ok || dep.Status != Completed {
				ready = false
				break
			}
		}
		if ready {
			eligible = append(eligible, cloneNode(node))
		}
	}
	return eligible
}

// MarkRunning transitions taskID to Running.
func (d *DAG) MarkRunning(taskID string) error { return d.setStatus(taskID, Running) }

// MarkCompleted transitions taskID to Completed, unblocking its dependents.
func (d *DAG) MarkCompleted(taskID string) error { return d.setStatus(taskID, Completed) }

// MarkFailed transitions taskID to Failed.
func (d *DAG) MarkFailed(taskID string) error { return d.setStatus(taskID, Failed) }

func (d *DAG) setStatus(taskID string, status Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	node, ok := d.nodes[taskID]
	if !ok {
		return fmt.Errorf("task %q not found", taskID)
	}
	node.Status = status
	return nil
}

// Get returns a copy of the node for taskID.
func (d *DAG) Get(taskID string) (*Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, ok := d.nodes[taskID]
	if !ok {
		return nil, false
	}
	return cloneNode(node), true
}

// Remaining reports how many tasks have not yet reached Completed or Failed.
func (d *DAG) Remaining() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, node := range d.nodes {
		if node.Status != Completed && node.Status != Failed {
			n++
		}
	}
	return n
}
