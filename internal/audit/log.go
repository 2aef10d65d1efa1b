package audit

import (
	"context"
	"log/slog"
)

// LogSink writes records to a structured logger at info level.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink returns a LogSink. A nil logger means [slog.Default].
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

// Record implements [Sink].
func (s *LogSink) Record(ctx context.Context, r Record) error {
	s.log.InfoContext(ctx, "objective transition",
		"session_id", r.SessionID,
		"objective", r.Objective,
		"kind", r.Kind,
		"event", r.Event,
		"from", r.From,
		"to", r.To,
	)
	return nil
}
