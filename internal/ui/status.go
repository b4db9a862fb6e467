package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// CollectionStatus is one physical collection's stats.
type CollectionStatus struct {
	Name       string `json:"name"`
	Points     int    `json:"points"`
	Dimensions int    `json:"dimensions"`
}

// RunStatus summarizes the most recent rebuild of a base.
type RunStatus struct {
	Base       string    `json:"base"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
}

// StatusInfo is the full index health report.
type StatusInfo struct {
	Collections     []CollectionStatus `json:"collections"`
	Aliases         map[string]string  `json:"aliases"`
	Reconciliations []string           `json:"reconciliations,omitempty"`
	LastRuns        []RunStatus        `json:"last_runs,omitempty"`

	EmbedderBackend string `json:"embedder_backend"`
	EmbedderModel   string `json:"embedder_model,omitempty"`
	Dimensions      int    `json:"dimensions"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes the status report as text.
func (r *StatusRenderer) Render(info StatusInfo) error {
	fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status"))

	if len(info.Collections) == 0 {
		fmt.Fprintln(r.out, "  No collections.")
	}
	for _, col := range info.Collections {
		fmt.Fprintf(r.out, "  %-32s %8d points  %4d dims\n", col.Name, col.Points, col.Dimensions)
	}
	fmt.Fprintln(r.out)

	if len(info.Aliases) > 0 {
		fmt.Fprintln(r.out, r.styles.Label.Render("  Aliases:"))
		for alias, target := range info.Aliases {
			fmt.Fprintf(r.out, "    %s -> %s\n", alias, target)
		}
		fmt.Fprintln(r.out)
	}

	if len(info.Reconciliations) > 0 {
		fmt.Fprintln(r.out, r.styles.Warning.Render("  Needs reconciliation:"))
		for _, base := range info.Reconciliations {
			fmt.Fprintf(r.out, "    %s\n", base)
		}
		fmt.Fprintln(r.out)
	}

	for _, run := range info.LastRuns {
		status := run.Status
		switch run.Status {
		case "committed":
			status = r.styles.Success.Render(run.Status)
		case "needs_reconciliation", "rolled_back":
			status = r.styles.Warning.Render(run.Status)
		}
		fmt.Fprintf(r.out, "  %s: last run %s (%s) %d docs, %d chunks\n",
			run.Base, run.RunID, status, run.Documents, run.Chunks)
	}

	if info.EmbedderBackend != "" {
		fmt.Fprintf(r.out, "\n  Embedder: %s (%s, %d dims)\n",
			info.EmbedderBackend, info.EmbedderModel, info.Dimensions)
	}
	return nil
}

// RenderJSON writes the status report as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
