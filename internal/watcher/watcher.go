// Package watcher observes document spool directories and reports
// which base collections have new, changed, or removed extracted
// documents, debounced so a burst of spool writes triggers one rebuild.
package watcher

import (
	"context"
	"time"
)

// Operation is a spool file operation.
type Operation int

const (
	// OpCreate indicates a new spool document appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing spool document changed.
	OpModify
	// OpDelete indicates a spool document was removed.
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// SpoolEvent is one debounced spool change.
type SpoolEvent struct {
	// Base is the base collection whose spool changed.
	Base string

	// Document is the document ID (the spool file name without
	// extension).
	Document string

	// Operation is the kind of change.
	Operation Operation

	// Timestamp is when the change was detected.
	Timestamp time.Time
}

// Watcher watches the spool directories of a set of base collections.
type Watcher interface {
	// Start begins watching. The watcher runs until Stop is called or
	// the context is cancelled.
	Start(ctx context.Context) error

	// Stop stops the watcher and releases resources. Safe to call more
	// than once.
	Stop() error

	// Events returns batches of debounced spool events. The channel is
	// closed when the watcher stops.
	Events() <-chan []SpoolEvent

	// Errors returns non-fatal watcher errors; the watcher keeps
	// running. The channel is closed when the watcher stops.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// SpoolDir is the root directory; each base reads SpoolDir/<base>.
	SpoolDir string

	// Bases lists the base collections to watch.
	Bases []string

	// DebounceWindow is how long to coalesce events before emitting.
	// Default: 500ms.
	DebounceWindow time.Duration

	// PollInterval is the scan interval for the polling fallback.
	// Default: 5s.
	PollInterval time.Duration

	// EventBufferSize is the event channel buffer. Default: 100.
	EventBufferSize int
}

// WithDefaults fills zero values with defaults.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.PollInterval == 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 100
	}
	return o
}
