package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loreseek/loreseek/internal/errors"
	"github.com/loreseek/loreseek/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the spool and rebuild on changes",
		Long: `Watch the spool directories and rebuild a base collection whenever
its extracted documents change. Bursts of file events are coalesced so
a multi-file drop triggers one rebuild.

Runs until interrupted. Queries against the live index keep working
throughout; each rebuild swaps in atomically when it completes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use deterministic embeddings (skip the embedding service)")
	return cmd
}

func runWatch(cmd *cobra.Command, offline bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, appOptions{staticEmbedder: offline})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if len(app.Config.Sources.Collections) == 0 {
		return fmt.Errorf("no collections configured; list them under sources.collections in .loreseek.yaml")
	}

	w, err := watcher.New(watcher.Options{
		SpoolDir:       app.Config.Sources.SpoolDir,
		Bases:          app.Config.Sources.Collections,
		DebounceWindow: app.Config.WatchDebounce(),
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s (%d collections). Ctrl-C to stop.\n",
		app.Config.Sources.SpoolDir, len(app.Config.Sources.Collections))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			for _, base := range affectedBases(batch) {
				fmt.Fprintf(out, "Change in %s, rebuilding...\n", base)
				result, err := app.Manager.Rebuild(ctx, []string{base})
				if err != nil {
					// A run already in flight for this base will pick
					// up the spool as it is; skip quietly.
					if errors.HasCode(err, errors.ErrCodeRebuildInProgress) {
						continue
					}
					slog.Error("rebuild failed", "base", base, "error", err)
					fmt.Fprintf(out, "Rebuild of %s failed: %v\n", base, err)
					continue
				}
				fmt.Fprintf(out, "Rebuilt %s: %d documents, %d chunks (%s)\n",
					base, result.DocsProcessed, result.ChunksIndexed, result.Status)
			}
		}
	}
}

// affectedBases returns the distinct bases in a debounced batch, in
// first-seen order.
func affectedBases(batch []watcher.SpoolEvent) []string {
	seen := make(map[string]bool)
	var bases []string
	for _, ev := range batch {
		if !seen[ev.Base] {
			seen[ev.Base] = true
			bases = append(bases, ev.Base)
		}
	}
	return bases
}
