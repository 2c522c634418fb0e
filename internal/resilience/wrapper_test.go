package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
)

// scriptedHandler returns a scripted sequence of (result, error) pairs, one
// per Execute call, and counts how many times it was actually invoked.
type scriptedHandler struct {
	mu      sync.Mutex
	results []model.ExecutionResult
	calls   int
}

func (h *scriptedHandler) Execute(ctx context.Context, task model.TaskSpec, worktreePath string, timeout time.Duration) (model.ExecutionResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.calls >= len(h.results) {
		return model.ExecutionResult{Success: true}, nil
	}
	r := h.results[h.calls]
	h.calls++
	return r, nil
}

func (h *scriptedHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func alwaysFailing(n int) []model.ExecutionResult {
	out := make([]model.ExecutionResult, n)
	for i := range out {
		out[i] = model.ExecutionResult{Success: false, Error: "boom"}
	}
	return out
}

func TestBreakingHandler_PassesThroughSuccess(t *testing.T) {
	inner := &scriptedHandler{results: []model.ExecutionResult{{Success: true, Output: "ok"}}}
	registry := NewRegistry(DefaultBreakerSettings(), nil)
	wrapped := Wrap("claude_code", inner, registry)

	result, err := wrapped.Execute(context.Background(), model.TaskSpec{TaskID: "t1"}, "/tmp/wt", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if inner.callCount() != 1 {
		t.Fatalf("expected 1 call, got %d", inner.callCount())
	}
}

func TestBreakingHandler_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedHandler{results: alwaysFailing(20)}
	settings := BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Minute, HalfOpenMaxRequests: 1}
	registry := NewRegistry(settings, nil)
	wrapped := Wrap("claude_code", inner, registry)

	for i := 0; i < 3; i++ {
		result, err := wrapped.Execute(context.Background(), model.TaskSpec{TaskID: "t1"}, "/tmp/wt", time.Second)
		if err != nil {
			t.Fatalf("call %d: unexpected transport error: %v", i, err)
		}
		if result.Success {
			t.Fatalf("call %d: expected failure", i)
		}
	}

	callsBeforeOpen := inner.callCount()
	if callsBeforeOpen != 3 {
		t.Fatalf("expected 3 inner calls before open, got %d", callsBeforeOpen)
	}

	result, err := wrapped.Execute(context.Background(), model.TaskSpec{TaskID: "t2"}, "/tmp/wt", time.Second)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure once circuit is open")
	}
	if inner.callCount() != callsBeforeOpen {
		t.Fatalf("expected inner handler not to be invoked while circuit is open, calls=%d", inner.callCount())
	}
}

func TestBreakingHandler_SeparateRoutesHaveIndependentBreakers(t *testing.T) {
	registry := NewRegistry(BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute, HalfOpenMaxRequests: 1}, nil)

	claudeInner := &scriptedHandler{results: alwaysFailing(5)}
	claudeWrapped := Wrap("claude_code", claudeInner, registry)
	for i := 0; i < 2; i++ {
		if _, err := claudeWrapped.Execute(context.Background(), model.TaskSpec{TaskID: "t1"}, "/tmp/wt", time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	manualInner := &scriptedHandler{results: []model.ExecutionResult{{Success: true}}}
	manualWrapped := Wrap("manual", manualInner, registry)
	result, err := manualWrapped.Execute(context.Background(), model.TaskSpec{TaskID: "t2"}, "/tmp/wt", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected manual route to succeed independently of claude_code breaker, got %+v", result)
	}
}
