package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid spool events so a burst of writes to the
// same document triggers one rebuild. Events for the same document
// within the window merge:
//   - CREATE + MODIFY = CREATE (document is still new)
//   - CREATE + DELETE = nothing (document never really landed)
//   - MODIFY + DELETE = DELETE (document is gone)
//   - DELETE + CREATE = MODIFY (document was replaced)
type Debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	mu      sync.Mutex
	output  chan []SpoolEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   SpoolEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer with the given coalescing window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []SpoolEvent, 10),
	}
}

// Add feeds one raw event into the debouncer.
func (d *Debouncer) Add(event SpoolEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	key := event.Base + "/" + event.Document
	if existing, ok := d.pending[key]; ok {
		coalesced := coalesce(existing, event)
		if coalesced == nil {
			delete(d.pending, key)
		} else {
			existing.event = *coalesced
		}
	} else {
		d.pending[key] = &pendingEvent{event: event, firstOp: event.Operation}
	}

	d.scheduleFlush()
}

// coalesce merges a new event into an existing pending one. Returns nil
// when the pair cancels out.
func coalesce(existing *pendingEvent, next SpoolEvent) *SpoolEvent {
	switch existing.firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			return &existing.event
		case OpDelete:
			return nil
		default:
			return &next
		}
	case OpModify:
		return &next
	case OpDelete:
		if next.Operation == OpCreate {
			result := next
			result.Operation = OpModify
			return &result
		}
		return &next
	default:
		return &next
	}
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]SpoolEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		events = append(events, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []SpoolEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel. Safe to call
// more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
