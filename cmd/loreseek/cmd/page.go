package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loreseek/loreseek/internal/search"
	"github.com/loreseek/loreseek/internal/structure"
)

func newPageCmd() *cobra.Command {
	var collection string
	var format string
	var offline bool

	cmd := &cobra.Command{
		Use:   "page <source> <page>",
		Short: "Show the indexed content of one page",
		Long: `Show every indexed chunk that originates on one page of a source
document. Useful for verifying a citation against the printed book.

Examples:
  loreseek page phb.pdf 241
  loreseek page dmg.pdf 136 --collection dmg --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[1])
			if err != nil || page < 1 {
				return fmt.Errorf("page must be a positive number, got %q", args[1])
			}
			return runPage(cmd, args[0], page, collection, format, offline)
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Base collection (default: first configured)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use deterministic embeddings (skip the embedding service)")
	return cmd
}

func runPage(cmd *cobra.Command, source string, page int, collection, format string, offline bool) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, appOptions{staticEmbedder: offline})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	base := collection
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

	results, err := engine.GetBySourceAndPage(ctx, source, page)
	if errors.Is(err, search.ErrPageNotFound) {
		return fmt.Errorf("no indexed content for %s page %d", source, page)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	fmt.Fprintf(out, "%s p.%d (%d chunks)\n\n", source, page, len(results))
	for _, res := range results {
		if path := res.Metadata[structure.MetaHeadingPath]; path != "" {
			fmt.Fprintf(out, "  [%s]\n", path)
		}
		fmt.Fprintf(out, "  %s\n\n", res.Text)
	}
	return nil
}
