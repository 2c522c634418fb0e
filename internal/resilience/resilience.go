// Package resilience wraps task handlers with a per-route circuit breaker
// so a systemically broken coding-agent CLI (or any other handler backend)
// stops being retried task after task once it has failed enough times in a
// row. It does not retry: internal/model.RetryState already owns the
// fixed per-task retry schedule. This package only decides, before a task
// ever reaches the handler, whether that route is currently healthy enough
// to try.
package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures how many consecutive failures trip a route's
// breaker and how long it stays open before allowing a trial request.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenMaxRequests uint32
}

// DefaultBreakerSettings returns the defaults used when a route has no
// override: 5 consecutive handler failures trips the breaker, which then
// stays open for 30s before allowing a single half-open trial.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Registry manages one circuit breaker per route (handler type, e.g.
// "claude_code" or "manual").
type Registry struct {
	mu       sync.Mutex
	settings BreakerSettings
	logger   *slog.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry builds a Registry. A nil logger falls back to slog.Default().
func NewRegistry(settings BreakerSettings, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		settings: settings,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for route, creating it on first use.
func (r *Registry) Get(route string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[route]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        route,
		MaxRequests: r.settings.HalfOpenMaxRequests,
		Interval:    0,
		Timeout:     r.settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("handler circuit breaker state change", "route", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	r.breakers[route] = cb
	return cb
}
