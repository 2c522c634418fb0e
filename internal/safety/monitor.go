package safety

import (
	"fmt"
	"sync"
	"time"
)

// MonitorConfig configures SafetyMonitor's session-wide hard limits.
type MonitorConfig struct {
	MaxCostUSD            float64 // default 5.0
	MaxTimeHours          float64 // default 4.0
	MaxConsecutiveFailures int    // default 3
}

func (c MonitorConfig) maxCostUSD() float64 {
	if c.MaxCostUSD <= 0 {
		return 5.0
	}
	return c.MaxCostUSD
}

func (c MonitorConfig) maxTimeHours() float64 {
	if c.MaxTimeHours <= 0 {
		return 4.0
	}
	return c.MaxTimeHours
}

func (c MonitorConfig) maxConsecutiveFailures() int {
	if c.MaxConsecutiveFailures <= 0 {
		return 3
	}
	return c.MaxConsecutiveFailures
}

// RemainingBudget reports how much of each session-wide limit is left.
type RemainingBudget struct {
	CostUSD  float64
	Hours    float64
	Failures int
}

// Monitor enforces session-wide hard limits independent of per-task
// retries: a total cost ceiling, a wall-clock ceiling, and a consecutive
// (not cumulative) failure ceiling. A breach aborts the session; it is the
// orchestrator's job to let in-progress tasks finish their current phase
// before honoring that.
type Monitor struct {
	config    MonitorConfig
	startTime time.Time

	mu                  sync.Mutex
	totalCostUSD        float64
	consecutiveFailures int
}

// NewMonitor builds a Monitor with its clock started at now.
func NewMonitor(cfg MonitorConfig, now time.Time) *Monitor {
	return &Monitor{config: cfg, startTime: now}
}

// CheckLimits reports whether a new task may be acquired.
func (m *Monitor) CheckLimits(now time.Time) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.totalCostUSD >= m.config.maxCostUSD() {
		return false, fmt.Sprintf("cost budget exhausted: $%.2f >= $%.2f", m.totalCostUSD, m.config.maxCostUSD())
	}
	elapsedHours := now.Sub(m.startTime).Hours()
	if elapsedHours >= m.config.maxTimeHours() {
		return false, fmt.Sprintf("time budget exhausted: %.2fh >= %.2fh", elapsedHours, m.config.maxTimeHours())
	}
	if m.consecutiveFailures >= m.config.maxConsecutiveFailures() {
		return false, fmt.Sprintf("consecutive failure limit reached: %d", m.consecutiveFailures)
	}
	return true, ""
}

// RecordSuccess folds costUSD into the running total and resets the
// consecutive-failure count.
func (m *Monitor) RecordSuccess(costUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalCostUSD += costUSD
	m.consecutiveFailures = 0
}

// RecordFailure increments the consecutive-failure count. It does not
// touch totalCostUSD; a failed handler invocation may still have accrued
// real cost, which callers should fold in separately if known.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveFailures++
}

// RemainingBudget reports how much of each limit remains as of now.
func (m *Monitor) RemainingBudget(now time.Time) RemainingBudget {
	m.mu.Lock()
	defer m.mu.Unlock()

	remainingCost := m.config.maxCostUSD() - m.totalCostUSD
	if remainingCost < 0 {
		remainingCost = 0
	}
	remainingHours := m.config.maxTimeHours() - now.Sub(m.startTime).Hours()
	if remainingHours < 0 {
		remainingHours = 0
	}
	remainingFailures := m.config.maxConsecutiveFailures() - m.consecutiveFailures
	if remainingFailures < 0 {
		remainingFailures = 0
	}
	return RemainingBudget{CostUSD: remainingCost, Hours: remainingHours, Failures: remainingFailures}
}
