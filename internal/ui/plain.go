package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes line-oriented progress, suitable for terminals,
// CI, and pipes alike.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:    cfg.Output,
		styles: GetStyles(cfg.NoColor),
	}
}

// UpdateProgress prints one progress line.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := event.Message
	if msg == "" {
		msg = event.Document
	}

	tag := r.styles.Label.Render("[" + event.Stage.Icon() + "]")
	if event.Total > 0 {
		fmt.Fprintf(r.out, "%s %d/%d - %s\n", tag, event.Current, event.Total, msg)
	} else if msg != "" {
		fmt.Fprintf(r.out, "%s %s\n", tag, msg)
	}
}

// AddError prints one error line.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := r.styles.Error.Render("ERROR")
	if event.IsWarn {
		prefix = r.styles.Warning.Render("WARN")
	}

	if event.Document != "" {
		fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Document, event.Err)
	} else {
		fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete prints the run summary.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "%s %d documents, %d chunks indexed in %s",
		r.styles.Success.Render("Complete:"),
		stats.Documents, stats.Chunks, stats.Duration.Round(100*time.Millisecond))

	if stats.Errors > 0 || stats.Warnings > 0 {
		fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	fmt.Fprintln(r.out)

	if stats.EmbedderBackend != "" {
		fmt.Fprintf(r.out, "Backend: %s (%s, %d dims)\n",
			stats.EmbedderBackend, stats.EmbedderModel, stats.Dimensions)
	}
}
