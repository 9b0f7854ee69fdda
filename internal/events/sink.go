package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Sink records change events to durable storage.
type Sink interface {
	Record(ctx context.Context, ev ChangeEvent) error
}

// LogSink writes one structured log record per event.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, ev ChangeEvent) error {
	attrs := []slog.Attr{
		slog.Int("code", ev.Kind.Code()),
		slog.String("kind", ev.Kind.String()),
		slog.String("category", ev.Category.String()),
		slog.String("path", ev.Path),
	}
	if ev.PreviousPath != "" {
		attrs = append(attrs, slog.String("previous_path", ev.PreviousPath))
	}
	if ev.EventID != "" {
		attrs = append(attrs, slog.String("event_id", ev.EventID))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, ev.String(), attrs...)
	return nil
}

// Multi fans an event out to several sinks. Every sink is attempted; the
// errors are joined.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, ev ChangeEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []ChangeEvent
}

// Record implements Sink.
func (r *Recorder) Record(_ context.Context, ev ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChangeEvent(nil), r.events...)
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
