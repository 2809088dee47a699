// Package audit carries activity events from the engine to a pluggable sink.
//
// The engine decides which events to emit; this package only buffers and delivers.
// Storage and export of the activity log belong to whatever [Sink] the caller wires in.
package audit
