package sessiontrust

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.Observe("login", "success")
	m.Observe("login", "success")
	m.Observe("login", "failure")

	if got := m.Value("login", "success"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("login", "failure")); got != 1 {
		t.Fatalf("expected exported failure count 1, got %v", got)
	}

	snap := m.Snapshot()
	if snap.Operations[OperationKey{Operation: "login", Outcome: "success"}] != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMetricsReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	second, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second NewMetrics failed: %v", err)
	}

	first.Observe("logout", "success")
	second.Observe("logout", "success")

	if got := testutil.ToFloat64(first.operations.WithLabelValues("logout", "success")); got != 2 {
		t.Fatalf("expected shared collector count 2, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.Observe("login", "success")
	m.ObserveDuration("login", 0)
	if m.Value("login", "success") != 0 {
		t.Fatal("expected zero value")
	}
	if len(m.Snapshot().Operations) != 0 {
		t.Fatal("expected empty snapshot")
	}
}

func TestEngineRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, nil, func(b *Builder) {
		b.WithMetricsRegisterer(reg)
	})
	env.register(t, "cleo@example.com", false)
	env.login(t, "cleo@example.com")
	_, _ = env.engine.Login(context.Background(), "cleo@example.com", "Wrong@pass1")

	snap := env.engine.MetricsSnapshot()
	if snap.Operations[OperationKey{Operation: "login", Outcome: "success"}] != 1 {
		t.Fatalf("expected one successful login, got %+v", snap.Operations)
	}
	if snap.Operations[OperationKey{Operation: "login", Outcome: "failure"}] != 1 {
		t.Fatalf("expected one failed login, got %+v", snap.Operations)
	}
	if snap.Operations[OperationKey{Operation: "register", Outcome: "success"}] != 1 {
		t.Fatalf("expected one registration, got %+v", snap.Operations)
	}

	if n, err := testutil.GatherAndCount(reg, "sessiontrust_operation_duration_seconds"); err != nil || n == 0 {
		t.Fatalf("expected duration samples, got %d (%v)", n, err)
	}
}
