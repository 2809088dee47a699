package sessiontrust

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessiontrust/internal/audit"
)

// AuditEvent is one activity record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's background dispatcher.
type AuditSink = audit.Sink

// NoOpAuditSink discards events.
type NoOpAuditSink = audit.NoOpSink

// NewChannelAuditSink returns a sink that forwards events to a buffered channel.
func NewChannelAuditSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONAuditSink returns a sink that writes one JSON object per line to w.
func NewJSONAuditSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogrusAuditSink returns a sink that logs events as structured entries.
// It is the default sink when auditing is enabled and none is configured.
func NewLogrusAuditSink(logger logrus.FieldLogger) *audit.LogrusSink {
	return audit.NewLogrusSink(logger)
}
