// Package async provides the one-way status channel and progress
// tracking the lifecycle manager reports through.
package async

import (
	"log/slog"
	"sync"
	"time"
)

// EventType classifies status events.
type EventType string

const (
	// EventMilestone marks a lifecycle phase transition.
	EventMilestone EventType = "milestone"
	// EventProgress reports incremental ingest progress.
	EventProgress EventType = "progress"
	// EventError reports a non-fatal error during a run.
	EventError EventType = "error"
	// EventCompletion reports a run reaching a terminal status.
	EventCompletion EventType = "completion"
)

// Event is one structured status record.
type Event struct {
	Type EventType      `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// Sink receives status events. Emit must never block the caller for
// long and is never read back by the emitter.
type Sink interface {
	Emit(eventType EventType, data map[string]any)
}

// SlogSink writes events to the structured log.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink over the given logger; nil uses the
// default logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(eventType EventType, data map[string]any) {
	attrs := make([]any, 0, len(data)*2)
	for key, value := range data {
		attrs = append(attrs, slog.Any(key, value))
	}
	switch eventType {
	case EventError:
		s.logger.Error("rebuild event", attrs...)
	default:
		s.logger.Info("rebuild "+string(eventType), attrs...)
	}
}

// MemorySink records events for inspection in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty recording sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(eventType EventType, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]any, len(data))
	for key, value := range data {
		copied[key] = value
	}
	s.events = append(s.events, Event{Type: eventType, Time: time.Now(), Data: copied})
}

// Events returns a copy of all recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns recorded events of one type.
func (s *MemorySink) ByType(eventType EventType) []Event {
	var out []Event
	for _, ev := range s.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
