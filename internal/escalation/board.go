// Package escalation is a notice board for tasks ManualHandler could not
// execute: a lightweight, non-blocking pub-sub so an operator can discover
// them without polling the backlog for Blocked status.
package escalation

import (
	"sync"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
)

// Escalation records one task that needs human action.
type Escalation struct {
	TaskID    string    `json:"task_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

const defaultCapacity = 256

// Board is a buffered, drop-when-full notice board, matching EventBus's
// publish semantics: a slow or absent reader never blocks a handler.
type Board struct {
	mu      sync.Mutex
	entries []Escalation
	cap     int
}

// NewBoard creates a Board holding up to capacity entries. A capacity of
// zero uses the default of 256.
func NewBoard(capacity int) *Board {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Board{cap: capacity}
}

// Post appends an escalation, dropping the oldest entry if the board is at
// capacity. Never blocks, never returns an error.
func (b *Board) Post(taskID, reason string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, Escalation{TaskID: taskID, Reason: reason, Timestamp: now})
	if len(b.entries) > b.cap {
		b.entries = b.entries[len(b.entries)-b.cap:]
	}
}

// List returns a snapshot of every pending escalation, oldest first.
func (b *Board) List() []Escalation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Escalation, len(b.entries))
	copy(out, b.entries)
	return out
}

// Drain returns every pending escalation and clears the board.
func (b *Board) Drain() []Escalation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.entries
	b.entries = nil
	return out
}

// OnEscalate builds a handler.ManualHandler-compatible callback that posts
// task to the board with a fixed reason.
func (b *Board) OnEscalate(now func() time.Time) func(task model.TaskSpec) {
	return func(task model.TaskSpec) {
		b.Post(task.TaskID, "requires manual action", now())
	}
}
