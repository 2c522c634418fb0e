package events

import "time"

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask    = "task"
	TopicSession = "session"
)

// Event type constants
const (
	EventTypeTaskAcquired        = "task.acquired"
	EventTypeTaskRejected        = "task.rejected"
	EventTypeWorktreeCreated     = "task.worktree_created"
	EventTypeHandlerStarted      = "task.handler_started"
	EventTypeHandlerCompleted    = "task.handler_completed"
	EventTypeResultProcessed     = "task.result_processed"
	EventTypeSessionLimitBreach  = "session.limit_breached"
	EventTypeEmergencyStop       = "session.emergency_stop"
)

// TaskAcquiredEvent is published when SafetyRails clears a task for
// execution and it is handed to a handler.
type TaskAcquiredEvent struct {
	ID        string
	Route     string
	Timestamp time.Time
}

func (e TaskAcquiredEvent) EventType() string { return EventTypeTaskAcquired }
func (e TaskAcquiredEvent) TaskID() string    { return e.ID }

// TaskRejectedEvent is published when SafetyRails.Validate declines a task.
type TaskRejectedEvent struct {
	ID        string
	Reason    string
	Timestamp time.Time
}

func (e TaskRejectedEvent) EventType() string { return EventTypeTaskRejected }
func (e TaskRejectedEvent) TaskID() string    { return e.ID }

// WorktreeCreatedEvent is published once a task's isolated worktree exists.
type WorktreeCreatedEvent struct {
	ID           string
	WorktreePath string
	Branch       string
	Timestamp    time.Time
}

func (e WorktreeCreatedEvent) EventType() string { return EventTypeWorktreeCreated }
func (e WorktreeCreatedEvent) TaskID() string    { return e.ID }

// HandlerStartedEvent is published when a Handler.Execute call begins.
type HandlerStartedEvent struct {
	ID        string
	Route     string
	Timestamp time.Time
}

func (e HandlerStartedEvent) EventType() string { return EventTypeHandlerStarted }
func (e HandlerStartedEvent) TaskID() string    { return e.ID }

// HandlerCompletedEvent is published when a Handler.Execute call returns.
type HandlerCompletedEvent struct {
	ID          string
	Success     bool
	DurationSec float64
	CostUSD     float64
	Timestamp   time.Time
}

func (e HandlerCompletedEvent) EventType() string { return EventTypeHandlerCompleted }
func (e HandlerCompletedEvent) TaskID() string    { return e.ID }

// ResultProcessedEvent is published once ResultProcessor has finished: a PR
// was opened, the backlog status updated, or the task was left for retry.
type ResultProcessedEvent struct {
	ID        string
	Status    string // e.g. "pr_opened", "blocked", "retry_scheduled"
	PRURL     string
	Timestamp time.Time
}

func (e ResultProcessedEvent) EventType() string { return EventTypeResultProcessed }
func (e ResultProcessedEvent) TaskID() string    { return e.ID }

// SessionLimitBreachEvent is published when SafetyMonitor.CheckLimits first
// refuses further acquisition.
type SessionLimitBreachEvent struct {
	Reason    string
	Timestamp time.Time
}

func (e SessionLimitBreachEvent) EventType() string { return EventTypeSessionLimitBreach }
func (e SessionLimitBreachEvent) TaskID() string    { return "" }

// EmergencyStopEvent is published when SafetyRails observes a
// .scaffold_stop sentinel.
type EmergencyStopEvent struct {
	Reason    string
	Timestamp time.Time
}

func (e EmergencyStopEvent) EventType() string { return EventTypeEmergencyStop }
func (e EmergencyStopEvent) TaskID() string    { return "" }
