package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes audit events to an slog.Logger.
// Useful for development when you want to see call traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("event_id", event.ID),
		slog.String("kind", event.Kind.String()),
	}

	if event.DeviceSN != "" {
		attrs = append(attrs, slog.String("device_sn", event.DeviceSN))
	}

	switch {
	case event.Call != nil:
		attrs = append(attrs,
			slog.String("endpoint", event.Call.Endpoint),
			slog.String("method", event.Call.Method),
			slog.Int("errno", event.Call.Errno),
			slog.Duration("duration", event.Call.Duration),
			slog.Int("calls_used_today", event.Call.CallsUsedToday),
		)
		if event.Call.Message != "" {
			attrs = append(attrs, slog.String("message", event.Call.Message))
		}
	case event.Commit != nil:
		attrs = append(attrs,
			slog.String("unit", event.Commit.Unit),
			slog.String("outcome", event.Commit.Outcome),
		)
		if event.Commit.Errno != 0 {
			attrs = append(attrs, slog.Int("errno", event.Commit.Errno))
		}
	case event.Poll != nil:
		attrs = append(attrs,
			slog.Bool("ok", event.Poll.OK),
			slog.Int("consecutive_failures", event.Poll.ConsecutiveFailures),
			slog.Bool("degraded", event.Poll.Degraded),
		)
		if event.Poll.Message != "" {
			attrs = append(attrs, slog.String("message", event.Poll.Message))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "api audit", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
