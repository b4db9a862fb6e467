package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loreseek/loreseek/internal/async"
	"github.com/loreseek/loreseek/internal/lifecycle"
	"github.com/loreseek/loreseek/internal/ui"
)

func newRebuildCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "rebuild [base...]",
		Short: "Rebuild index collections from the spool",
		Long: `Rebuild the named base collections from their spool directories.
With no arguments, rebuilds every configured collection.

Each rebuild stages a fresh generation, swaps the live alias to it
atomically, and only then discards the old one. Queries keep hitting
the previous generation until the swap lands.

Examples:
  loreseek rebuild
  loreseek rebuild phb
  loreseek rebuild phb dmg --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd, args, offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use deterministic embeddings (skip the embedding service)")
	return cmd
}

func runRebuild(cmd *cobra.Command, bases []string, offline bool) error {
	ctx := cmd.Context()

	renderer := ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout()))
	sink := &rendererSink{renderer: renderer}

	app, err := newApp(ctx, appOptions{staticEmbedder: offline, sink: sink})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if len(bases) == 0 {
		bases = app.Config.Sources.Collections
	}
	if len(bases) == 0 {
		return fmt.Errorf("no collections configured; list them under sources.collections in .loreseek.yaml")
	}

	started := time.Now()
	result, err := app.Manager.Rebuild(ctx, bases)
	if err != nil {
		return err
	}

	renderer.Complete(ui.CompletionStats{
		Documents:       result.DocsProcessed,
		Chunks:          result.ChunksIndexed,
		Duration:        time.Since(started),
		Errors:          sink.errors,
		Warnings:        result.DocsFailed,
		EmbedderBackend: app.Backend,
		EmbedderModel:   app.Embedder.ModelName(),
		Dimensions:      app.Embedder.Dimensions(),
	})

	if result.Status != lifecycle.StatusCommitted {
		return fmt.Errorf("rebuild finished with status %s", result.Status)
	}
	return nil
}

// rendererSink adapts lifecycle events to terminal progress output.
type rendererSink struct {
	renderer *ui.PlainRenderer
	errors   int
}

func (s *rendererSink) Emit(eventType async.EventType, data map[string]any) {
	switch eventType {
	case async.EventMilestone:
		status, _ := data["status"].(string)
		s.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   stageForStatus(status),
			Message: status,
		})
	case async.EventProgress:
		doc, _ := data["document"].(string)
		s.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:    ui.StageIndexing,
			Document: doc,
			Message:  doc,
		})
	case async.EventError:
		doc, _ := data["document"].(string)
		msg, _ := data["error"].(string)
		s.errors++
		s.renderer.AddError(ui.ErrorEvent{
			Document: doc,
			Err:      fmt.Errorf("%s", msg),
			IsWarn:   true,
		})
	}
}

func stageForStatus(status string) ui.Stage {
	switch status {
	case string(lifecycle.StatusStaging):
		return ui.StageStaging
	case string(lifecycle.StatusSwapping):
		return ui.StageSwapping
	default:
		return ui.StageComplete
	}
}
