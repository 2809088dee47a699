package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/sessiontrust"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source supplies the counters to export. *sessiontrust.Engine satisfies it.
type Source interface {
	MetricsSnapshot() sessiontrust.MetricsSnapshot
}

// Exporter owns the callback registration.
type Exporter struct {
	source       Source
	registration metric.Registration
	operations   metric.Int64ObservableCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers the instruments on meter.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	operations, err := meter.Int64ObservableCounter(
		"sessiontrust.operations",
		metric.WithDescription("Engine operations by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("create operations counter: %w", err)
	}
	auditDropped, err := meter.Int64ObservableCounter(
		"sessiontrust.audit.dropped",
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}

	e := &Exporter{source: source, operations: operations, auditDropped: auditDropped}
	e.registration, err = meter.RegisterCallback(e.observe, operations, auditDropped)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for key, n := range snapshot.Operations {
		observer.ObserveInt64(e.operations, int64(n), metric.WithAttributes(
			attribute.String("operation", key.Operation),
			attribute.String("outcome", key.Outcome),
		))
	}
	observer.ObserveInt64(e.auditDropped, int64(snapshot.AuditDropped))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
