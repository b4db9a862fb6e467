package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loreseek/loreseek/internal/store"
	"github.com/loreseek/loreseek/internal/ui"
)

type searchOptions struct {
	limit      int
	collection string
	source     string
	format     string
	offline    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed rulebooks",
		Long: `Search the indexed rulebooks with hybrid retrieval.

Semantic similarity, full-text matching, and heading keywords are
fused into one ranking. Results carry page numbers and section paths.

Examples:
  loreseek search "fireball damage"
  loreseek search "grappling rules" --collection phb --limit 3
  loreseek search "opportunity attack" --source phb.pdf --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 = configured default)")
	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Base collection to search (default: first configured)")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Restrict to one source document, e.g. phb.pdf")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use deterministic embeddings (skip the embedding service)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, appOptions{staticEmbedder: opts.offline})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	base := opts.collection
	if base == "" {
		if len(app.Config.Sources.Collections) == 0 {
			return fmt.Errorf("no collections configured; list them under sources.collections in .loreseek.yaml")
		}
		base = app.Config.Sources.Collections[0]
	}

	engine, err := app.Engine(ctx, base)
	if err != nil {
		return err
	}

	var filter *store.Filter
	if opts.source != "" {
		filter = &store.Filter{Must: map[string]string{store.MetaSource: opts.source}}
	}

	results, err := engine.Search(ctx, query, opts.limit, filter)
	if err != nil {
		return err
	}

	renderer := ui.NewResultRenderer(cmd.OutOrStdout(), noColor)
	if opts.format == "json" {
		return renderer.RenderJSON(results)
	}
	return renderer.Render(query, results)
}
