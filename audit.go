package shelfauth

import (
	"io"

	"github.com/MrEthical07/shelfauth/internal/audit"
	"github.com/rs/zerolog"
)

type (
	// AuditEvent is one authentication event delivered to an AuditSink.
	AuditEvent = audit.Event
	// AuditSink receives audit events from the engine's async dispatcher.
	AuditSink = audit.Sink
	// NoOpSink drops audit events.
	NoOpSink = audit.NoOpSink
	// ChannelSink delivers audit events into a buffered channel.
	ChannelSink = audit.ChannelSink
	// JSONWriterSink writes one JSON object per event.
	JSONWriterSink = audit.JSONWriterSink
	// LoggerSink writes audit events through zerolog.
	LoggerSink = audit.LoggerSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return audit.NewLoggerSink(logger)
}
