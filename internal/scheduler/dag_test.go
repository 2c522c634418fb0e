package scheduler

import "testing"

func TestDAG_EligibleStartsWithNoDependencyTasks(t *testing.T) {
	d := NewDAG()
	must(t, d.Add("a", nil))
	must(t, d.Add("b", []string{"a"}))

	eligible := d.Eligible()
	if len(eligible) != 1 || eligible[0].TaskID != "a" {
		t.Fatalf("expected only 'a' eligible, got %v", taskIDsOf(eligible))
	}
}

func TestDAG_CompletingDependencyUnblocksDependent(t *testing.T) {
	d := NewDAG()
	must(t, d.Add("a", nil))
	must(t, d.Add("b", []string{"a"}))

	must(t, d.MarkRunning("a"))
	must(t, d.MarkCompleted("a"))

	eligible := d.Eligible()
	if len(eligible) != 1 || eligible[0].TaskID != "b" {
		t.Fatalf("expected 'b' eligible after 'a' completes, got %v", taskIDsOf(eligible))
	}
}

func TestDAG_FailedDependencyBlocksForever(t *testing.T) {
	d := NewDAG()
	must(t, d.Add("a", nil))
	must(t, d.Add("b", []string{"a"}))

	must(t, d.MarkRunning("a"))
	must(t, d.MarkFailed("a"))

	if eligible := d.Eligible(); len(eligible) != 0 {
		t.Fatalf("expected no eligible tasks once the dependency failed, got %v", taskIDsOf(eligible))
	}
}

func TestDAG_ValidateDetectsCycle(t *testing.T) {
	d := NewDAG()
	must(t, d.Add("a", []string{"b"}))
	must(t, d.Add("b", []string{"a"}))

	if _, err := d.Validate(); err == nil {
		t.Fatal("expected cycle to be detected")
	}
}

func TestDAG_ValidateDetectsDependencyOutsideBatch(t *testing.T) {
	d := NewDAG()
	must(t, d.Add("a", []string{"missing"}))

	if _, err := d.Validate(); err == nil {
		t.Fatal("expected out-of-batch dependency to be rejected")
	}
}

func TestDAG_ValidateOrdersDependenciesFirst(t *testing.T) {
	d := NewDAG()
	must(t, d.Add("a", nil))
	must(t, d.Add("b", []string{"a"}))
	must(t, d.Add("c", []string{"b"}))

	order, err := d.Validate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("expected order a,b,c, got %v", order)
	}
}

func TestDAG_RemainingCountsOnlyNonTerminal(t *testing.T) {
	d := NewDAG()
	must(t, d.Add("a", nil))
	must(t, d.Add("b", nil))
	must(t, d.MarkCompleted("a"))

	if got := d.Remaining(); got != 1 {
		t.Errorf("expected 1 remaining, got %d", got)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func taskIDsOf(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.TaskID
	}
	return ids
}
