package sessiontrust

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationKey identifies one counter: an engine operation and how it ended.
type OperationKey struct {
	Operation string
	Outcome   string
}

// MetricsSnapshot is a point-in-time copy of the engine counters.
type MetricsSnapshot struct {
	Operations   map[OperationKey]uint64
	AuditDropped uint64
}

// Metrics counts engine outcomes. Counters are always kept in memory for
// [Engine.MetricsSnapshot]; when a registerer is supplied they are also exported
// as Prometheus collectors.
type Metrics struct {
	counters sync.Map // OperationKey -> *atomic.Uint64

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them on reg. A nil reg keeps
// the in-memory counters only. Collectors already registered by another engine
// on the same registerer are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	if reg == nil {
		return m, nil
	}

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessiontrust",
			Name:      "operations_total",
			Help:      "Engine operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sessiontrust",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	var err error
	if m.operations, err = registerCounterVec(reg, operations); err != nil {
		return nil, err
	}
	if m.duration, err = registerHistogramVec(reg, duration); err != nil {
		return nil, err
	}
	return m, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return h, nil
}

// Observe counts one outcome of op. Safe on a nil receiver.
func (m *Metrics) Observe(op, outcome string) {
	if m == nil {
		return
	}
	key := OperationKey{Operation: op, Outcome: outcome}
	v, ok := m.counters.Load(key)
	if !ok {
		v, _ = m.counters.LoadOrStore(key, new(atomic.Uint64))
	}
	v.(*atomic.Uint64).Add(1)
	if m.operations != nil {
		m.operations.WithLabelValues(op, outcome).Inc()
	}
}

// ObserveDuration records the latency of op.
func (m *Metrics) ObserveDuration(op string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// Value returns the current count for op and outcome.
func (m *Metrics) Value(op, outcome string) uint64 {
	if m == nil {
		return 0
	}
	v, ok := m.counters.Load(OperationKey{Operation: op, Outcome: outcome})
	if !ok {
		return 0
	}
	return v.(*atomic.Uint64).Load()
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Operations: map[OperationKey]uint64{}}
	if m == nil {
		return s
	}
	m.counters.Range(func(k, v any) bool {
		s.Operations[k.(OperationKey)] = v.(*atomic.Uint64).Load()
		return true
	})
	return s
}
