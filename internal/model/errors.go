package model

import "errors"

// Sentinel errors used across package boundaries. Callers should compare
// with errors.Is / errors.As rather than string matching.
var (
	ErrNotFound            = errors.New("task not found")
	ErrAlreadyExists        = errors.New("worktree already exists")
	ErrLimitReached         = errors.New("worktree concurrency limit reached")
	ErrDirtyWorktree        = errors.New("worktree has uncommitted changes")
	ErrTaskSkipped          = errors.New("task skipped")
	ErrEmergencyStop        = errors.New("emergency stop active")
	ErrRetryBudgetExceeded  = errors.New("retry budget exceeded")
	ErrCostExceedsBudget    = errors.New("cost exceeds remaining budget")
	ErrDependenciesBlocked  = errors.New("dependencies not satisfied")
	ErrRecordInvalid        = errors.New("record invalid")
)
