// Package logfeed mirrors engine events into the structured log, one line per
// event. It is the default observer when no external feed is attached.
package logfeed

import (
	"context"
	"log/slog"

	"github.com/c360/conveyor/event"
)

// Feed writes every observed event as a structured log record.
type Feed struct {
	logger *slog.Logger
	level  slog.Level
}

// New creates a log feed. A nil logger falls back to slog.Default().
func New(logger *slog.Logger, level slog.Level) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		logger: logger.With("feed", "log"),
		level:  level,
	}
}

// Observe implements event.Observer.
func (f *Feed) Observe(e event.Event) {
	attrs := []any{
		"worker", e.WorkerID,
		"role", e.Role,
	}
	if e.ItemID != 0 {
		attrs = append(attrs, "item", e.ItemID)
	}
	if e.From != "" || e.To != "" {
		attrs = append(attrs, "from", e.From, "to", e.To)
	}
	if e.Detail != "" {
		attrs = append(attrs, "detail", e.Detail)
	}

	f.logger.Log(context.Background(), f.level, string(e.Kind), attrs...)
}
