// Package router selects a handler registry key for a task based on its
// labels. Routing is deterministic and label-driven; it never inspects task
// content.
package router

import (
	"github.com/agentscaffold/scaffold/internal/model"
)

const (
	RouteManual     = "manual"
	RouteClaudeCode = "claude_code"
)

// labelRoutes is checked in order; the first matching label wins.
var labelRoutes = []struct {
	label string
	route string
}{
	{"user-action", RouteManual},
}

// Router maps a TaskSpec to a handler registry key.
type Router struct {
	// Routes allows registering additional label->route mappings beyond
	// the built-in user-action->manual rule. Custom handlers register
	// under their own string key; Router returns the key, not the
	// handler itself — callers resolve it through a handler registry.
	Routes map[string]string
}

// New builds a Router with only the built-in routes.
func New() *Router {
	return &Router{Routes: make(map[string]string)}
}

// Route returns the handler registry key for task: the built-in
// user-action->manual rule first, then any custom Routes, defaulting to
// claude_code. Route always returns a key; it is the caller's job to warn
// and fall back to claude_code when that key turns out not to be
// registered in its handler registry (an "unknown route").
func (r *Router) Route(task model.TaskSpec) string {
	for _, rule := range labelRoutes {
		if task.HasLabel(rule.label) {
			return rule.route
		}
	}
	for label, route := range r.Routes {
		if task.HasLabel(label) {
			return route
		}
	}
	return RouteClaudeCode
}
