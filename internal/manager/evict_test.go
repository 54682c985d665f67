package manager

import (
	"context"
	"testing"
	"time"
)

func TestEvictLRUWhenOverBudget(t *testing.T) {
	clearConstrainedEnv(t)
	// Budget fits one 1MB model at a time.
	m, _ := newTestManager(t, newFakeRuntime(), ManagerConfig{BudgetMB: 1, MarginMB: 0}, "a.onnx", "b.onnx")

	if err := m.EnsureInstance(context.Background(), "a.onnx"); err != nil {
		t.Fatalf("ensure a: %v", err)
	}
	// Make a strictly older than the incoming load.
	m.mu.Lock()
	m.instances["a.onnx"].LastUsed = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	if err := m.EnsureInstance(context.Background(), "b.onnx"); err != nil {
		t.Fatalf("ensure b: %v", err)
	}

	st := m.Status()
	if len(st.Instances) != 1 || st.Instances[0].ModelID != "b.onnx" {
		t.Fatalf("instances = %+v, want only b.onnx", st.Instances)
	}
	if st.EvictionsTotal != 1 {
		t.Fatalf("evictions = %d, want 1", st.EvictionsTotal)
	}
	if st.UsedMB != 1 {
		t.Fatalf("used = %d, want 1", st.UsedMB)
	}
}

func TestBudgetFittingBothEvictsNothing(t *testing.T) {
	clearConstrainedEnv(t)
	// 1 (resident) + 1 (incoming) + 0 (margin) <= 2: both fit exactly.
	m, _ := newTestManager(t, newFakeRuntime(), ManagerConfig{BudgetMB: 2, MarginMB: 0}, "a.onnx", "b.onnx")
	for _, id := range []string{"a.onnx", "b.onnx"} {
		if err := m.EnsureInstance(context.Background(), id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}
	st := m.Status()
	if len(st.Instances) != 2 {
		t.Fatalf("instances = %d, want 2", len(st.Instances))
	}
	if st.EvictionsTotal != 0 {
		t.Fatalf("evictions = %d, want 0", st.EvictionsTotal)
	}
	if st.UsedMB != 2 {
		t.Fatalf("used = %d, want 2", st.UsedMB)
	}
}

func TestNoBudgetNoEviction(t *testing.T) {
	clearConstrainedEnv(t)
	m, _ := newTestManager(t, newFakeRuntime(), ManagerConfig{}, "a.onnx", "b.onnx")
	for _, id := range []string{"a.onnx", "b.onnx"} {
		if err := m.EnsureInstance(context.Background(), id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}
	if n := m.InstancesCount(); n != 2 {
		t.Fatalf("instances = %d, want 2", n)
	}
}
