package cmd

import (
	"github.com/spf13/cobra"

	"github.com/loreseek/loreseek/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and recent rebuild runs",
		Long: `Report every physical collection, the live aliases, recent rebuild
outcomes per base, and any bases blocked on manual reconciliation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, jsonOut bool) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, appOptions{staticEmbedder: true})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	svc := app.IndexService()
	info := ui.StatusInfo{
		EmbedderBackend: app.Config.Embeddings.Provider,
		EmbedderModel:   app.Config.Embeddings.Model,
	}

	cols, err := svc.ListCollections(ctx)
	if err != nil {
		return err
	}
	for _, col := range cols {
		info.Collections = append(info.Collections, ui.CollectionStatus{
			Name:       col.Name,
			Points:     col.Points,
			Dimensions: col.Dimensions,
		})
		if info.Dimensions == 0 {
			info.Dimensions = col.Dimensions
		}
	}

	if aliases, err := svc.ListAliases(ctx); err == nil {
		info.Aliases = aliases
	}

	if recon, err := app.Manager.Reconciliations(ctx); err == nil {
		info.Reconciliations = recon
	}

	for _, base := range app.Config.Sources.Collections {
		runs, err := app.Manager.History(ctx, base)
		if err != nil || len(runs) == 0 {
			continue
		}
		last := runs[len(runs)-1]
		info.LastRuns = append(info.LastRuns, ui.RunStatus{
			Base:       base,
			RunID:      last.RunID,
			Status:     string(last.Status),
			FinishedAt: last.FinishedAt,
			Documents:  last.DocsProcessed,
			Chunks:     last.ChunksIndexed,
		})
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)
	if jsonOut {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}
