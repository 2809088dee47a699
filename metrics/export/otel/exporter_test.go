package otel

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/sessiontrust"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot sessiontrust.MetricsSnapshot
}

func (f *fakeSource) MetricsSnapshot() sessiontrust.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := sessiontrust.MetricsSnapshot{
		Operations:   make(map[sessiontrust.OperationKey]uint64, len(f.snapshot.Operations)),
		AuditDropped: f.snapshot.AuditDropped,
	}
	for k, v := range f.snapshot.Operations {
		out.Operations[k] = v
	}
	return out
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			return sum
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Sum[int64]{}
}

func TestExporterCollectsOperations(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{snapshot: sessiontrust.MetricsSnapshot{
		Operations: map[sessiontrust.OperationKey]uint64{
			{Operation: "login", Outcome: "success"}: 3,
			{Operation: "login", Outcome: "failure"}: 2,
		},
		AuditDropped: 1,
	}}

	exp, err := NewExporter(provider.Meter("sessiontrust-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	ops := findSum(t, rm, "sessiontrust.operations")
	got := map[string]int64{}
	for _, dp := range ops.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("operation"))
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		got[op.AsString()+"/"+outcome.AsString()] = dp.Value
	}
	if got["login/success"] != 3 || got["login/failure"] != 2 {
		t.Fatalf("unexpected operation points: %v", got)
	}

	dropped := findSum(t, rm, "sessiontrust.audit.dropped")
	if len(dropped.DataPoints) != 1 || dropped.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected audit dropped points: %+v", dropped.DataPoints)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter()

	if _, err := NewExporter(provider.Meter("sessiontrust-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	key := sessiontrust.OperationKey{Operation: "resolve_session", Outcome: "success"}
	src := &fakeSource{snapshot: sessiontrust.MetricsSnapshot{
		Operations: map[sessiontrust.OperationKey]uint64{key: 1},
	}}

	exp, err := NewExporter(provider.Meter("sessiontrust-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Operations[key] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReadsEngine(t *testing.T) {
	reader, provider := newMeter()
	engine := &sessiontrust.Engine{}

	exp, err := NewExporter(provider.Meter("sessiontrust-test"), engine)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	dropped := findSum(t, rm, "sessiontrust.audit.dropped")
	if len(dropped.DataPoints) != 1 || dropped.DataPoints[0].Value != 0 {
		t.Fatalf("unexpected audit dropped points: %+v", dropped.DataPoints)
	}
}
