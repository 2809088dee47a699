package sessiontrust

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func BenchmarkMetricsObserve(b *testing.B) {
	m, err := NewMetrics(nil)
	if err != nil {
		b.Fatalf("NewMetrics failed: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Observe("login", "success")
	}
}

func BenchmarkMetricsObserveRegistered(b *testing.B) {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		b.Fatalf("NewMetrics failed: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe("login", "success")
			m.ObserveDuration("login", time.Millisecond)
		}
	})
}

func BenchmarkMetricsNil(b *testing.B) {
	var m *Metrics
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Observe("login", "success")
	}
}
