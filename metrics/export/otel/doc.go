// Package otel exports engine counters as OpenTelemetry observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter for operation outcomes,
// labelled with operation and outcome attributes, and one for dropped audit
// events. Values are read from [sessiontrust.Engine.MetricsSnapshot] on each
// collection cycle. The caller owns the MeterProvider.
package otel
