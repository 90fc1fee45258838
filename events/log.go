package events

import (
	"context"
	"log/slog"

	"github.com/ruteri/attestation-registry/interfaces"
)

// LogSink writes every event as an Info record.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Emit(ctx context.Context, event interfaces.Event) error {
	attrs := []slog.Attr{
		slog.String("type", string(event.Type)),
		slog.String("key", event.Key.String()),
		slog.String("user", event.User.Hex()),
		slog.String("attestator", event.Attestator.Hex()),
		slog.Uint64("height", event.Height),
	}
	if event.Type != interfaces.EventRegister {
		attrs = append(attrs, slog.String("commitment", event.Commitment.Hex()))
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "attestation event", attrs...)
	return nil
}
