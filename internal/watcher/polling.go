package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PollingWatcher is the fallback for filesystems without change
// notification. It scans each base's spool directory on an interval and
// diffs modification times.
type PollingWatcher struct {
	opts      Options
	debouncer *Debouncer
	events    chan []SpoolEvent
	errors    chan error

	mu        sync.Mutex
	snapshots map[string]fileSnapshot
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher.
func NewPollingWatcher(opts Options) *PollingWatcher {
	opts = opts.WithDefaults()
	return &PollingWatcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []SpoolEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		snapshots: make(map[string]fileSnapshot),
		done:      make(chan struct{}),
	}
}

// Start begins scanning. The first scan only records state; changes are
// reported from the second scan on.
func (p *PollingWatcher) Start(ctx context.Context) error {
	if err := p.scan(false); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
	return nil
}

func (p *PollingWatcher) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.scan(true); err != nil {
				select {
				case p.errors <- err:
				default:
				}
			}
		case batch, ok := <-p.debouncer.Output():
			if !ok {
				return
			}
			select {
			case p.events <- batch:
			default:
			}
		}
	}
}

// scan walks every spool directory and diffs against the previous
// snapshot. When emit is false it only records state.
func (p *PollingWatcher) scan(emit bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]struct{})
	now := time.Now()

	for _, base := range p.opts.Bases {
		dir := filepath.Join(p.opts.SpoolDir, base)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}

			key := base + "/" + name
			seen[key] = struct{}{}
			next := fileSnapshot{modTime: info.ModTime(), size: info.Size()}

			prev, existed := p.snapshots[key]
			p.snapshots[key] = next
			if !emit {
				continue
			}

			doc := strings.TrimSuffix(name, ".json")
			if !existed {
				p.debouncer.Add(SpoolEvent{Base: base, Document: doc, Operation: OpCreate, Timestamp: now})
			} else if prev.modTime != next.modTime || prev.size != next.size {
				p.debouncer.Add(SpoolEvent{Base: base, Document: doc, Operation: OpModify, Timestamp: now})
			}
		}
	}

	for key := range p.snapshots {
		if _, ok := seen[key]; ok {
			continue
		}
		delete(p.snapshots, key)
		if !emit {
			continue
		}
		base, file, _ := strings.Cut(key, "/")
		p.debouncer.Add(SpoolEvent{
			Base:      base,
			Document:  strings.TrimSuffix(file, ".json"),
			Operation: OpDelete,
			Timestamp: now,
		})
	}
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-p.done
	}
	p.debouncer.Stop()
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns batches of debounced spool events.
func (p *PollingWatcher) Events() <-chan []SpoolEvent {
	return p.events
}

// Errors returns non-fatal scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
