package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SpoolWatcher watches each base's spool directory with fsnotify and
// emits debounced batches of document changes.
type SpoolWatcher struct {
	opts      Options
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []SpoolEvent
	errors    chan error

	mu          sync.Mutex
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
	forwardDone chan struct{}
}

// NewSpoolWatcher creates a spool watcher. Use New to fall back to
// polling when fsnotify is unavailable.
func NewSpoolWatcher(opts Options) (*SpoolWatcher, error) {
	opts = opts.WithDefaults()

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &SpoolWatcher{
		opts:      opts,
		fsWatcher: fsWatcher,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:      make(chan []SpoolEvent, opts.EventBufferSize),
		errors:      make(chan error, 10),
		done:        make(chan struct{}),
		forwardDone: make(chan struct{}),
	}, nil
}

// New creates the best available watcher: fsnotify, or the polling
// fallback when inotify capacity is exhausted or unsupported.
func New(opts Options) (Watcher, error) {
	w, err := NewSpoolWatcher(opts)
	if err == nil {
		return w, nil
	}
	slog.Warn("fsnotify unavailable, falling back to polling", "error", err)
	return NewPollingWatcher(opts), nil
}

// Start begins watching every base's spool directory. Directories that
// do not exist yet are created so they can be watched immediately.
func (w *SpoolWatcher) Start(ctx context.Context) error {
	for _, base := range w.opts.Bases {
		dir := filepath.Join(w.opts.SpoolDir, base)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create spool dir %s: %w", dir, err)
		}
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch spool dir %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(ctx)
	go w.forward(ctx)
	return nil
}

func (w *SpoolWatcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

func (w *SpoolWatcher) handle(event fsnotify.Event) {
	spoolEvent, ok := w.translate(event)
	if !ok {
		return
	}
	w.debouncer.Add(spoolEvent)
}

// translate maps one fsnotify event onto a spool event. Non-JSON files
// and temp files are ignored.
func (w *SpoolWatcher) translate(event fsnotify.Event) (SpoolEvent, bool) {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
		return SpoolEvent{}, false
	}

	base := filepath.Base(filepath.Dir(event.Name))

	var op Operation
	switch {
	case event.Op.Has(fsnotify.Create):
		op = OpCreate
	case event.Op.Has(fsnotify.Write):
		op = OpModify
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return SpoolEvent{}, false
	}

	return SpoolEvent{
		Base:      base,
		Document:  strings.TrimSuffix(name, ".json"),
		Operation: op,
		Timestamp: time.Now(),
	}, true
}

// forward moves debounced batches to the public event channel.
func (w *SpoolWatcher) forward(ctx context.Context) {
	defer close(w.forwardDone)
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			select {
			case w.events <- batch:
			default:
				slog.Warn("watcher event channel full, dropping batch",
					slog.Int("batch_size", len(batch)))
			}
		}
	}
}

func (w *SpoolWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher. Safe to call more than once.
func (w *SpoolWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	if w.cancel != nil {
		w.cancel()
		<-w.done
		<-w.forwardDone
	}
	err := w.fsWatcher.Close()
	w.debouncer.Stop()
	close(w.events)
	close(w.errors)
	return err
}

// Events returns batches of debounced spool events.
func (w *SpoolWatcher) Events() <-chan []SpoolEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *SpoolWatcher) Errors() <-chan error {
	return w.errors
}
