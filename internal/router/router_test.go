package router

import (
	"testing"

	"github.com/agentscaffold/scaffold/internal/model"
)

func TestRoute_UserActionGoesToManual(t *testing.T) {
	r := New()
	got := r.Route(model.TaskSpec{TaskID: "t1", Labels: []string{"user-action"}})
	if got != RouteManual {
		t.Errorf("expected manual, got %s", got)
	}
}

func TestRoute_DefaultsToClaudeCode(t *testing.T) {
	r := New()
	got := r.Route(model.TaskSpec{TaskID: "t2", Labels: []string{"build"}})
	if got != RouteClaudeCode {
		t.Errorf("expected claude_code, got %s", got)
	}
}

func TestRoute_NoLabelsDefaultsToClaudeCode(t *testing.T) {
	r := New()
	got := r.Route(model.TaskSpec{TaskID: "t3"})
	if got != RouteClaudeCode {
		t.Errorf("expected claude_code, got %s", got)
	}
}

func TestRoute_CustomRouteTakesPrecedenceOverDefault(t *testing.T) {
	r := New()
	r.Routes["audit"] = "compliance_reviewer"
	got := r.Route(model.TaskSpec{TaskID: "t4", Labels: []string{"audit"}})
	if got != "compliance_reviewer" {
		t.Errorf("expected compliance_reviewer, got %s", got)
	}
}

func TestRoute_UserActionTakesPrecedenceOverCustomRoutes(t *testing.T) {
	r := New()
	r.Routes["user-action"] = "something_else"
	got := r.Route(model.TaskSpec{TaskID: "t5", Labels: []string{"user-action"}})
	if got != RouteManual {
		t.Errorf("expected the built-in user-action rule to win, got %s", got)
	}
}
