package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/loreseek/loreseek/internal/search"
	"github.com/loreseek/loreseek/internal/structure"
)

// maxSnippetLength bounds the text excerpt shown per result.
const maxSnippetLength = 240

// ResultRenderer displays search results.
type ResultRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultRenderer creates a result renderer.
func NewResultRenderer(out io.Writer, noColor bool) *ResultRenderer {
	return &ResultRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes ranked results as text.
func (r *ResultRenderer) Render(query string, results []search.Result) error {
	if len(results) == 0 {
		fmt.Fprintf(r.out, "No results for %q.\n", query)
		return nil
	}

	for i, res := range results {
		header := fmt.Sprintf("%d. %s", i+1, sourceLabel(res))
		fmt.Fprintf(r.out, "%s  %s\n",
			r.styles.Heading.Render(header),
			r.styles.Score.Render(fmt.Sprintf("score %.3f", res.Score)))

		if path := res.Payload.Metadata[structure.MetaHeadingPath]; path != "" {
			fmt.Fprintf(r.out, "   %s\n", r.styles.Label.Render(path))
		}
		fmt.Fprintf(r.out, "   %s\n\n", snippet(res.Payload.Text))
	}
	return nil
}

// RenderJSON writes results as JSON.
func (r *ResultRenderer) RenderJSON(results []search.Result) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func sourceLabel(res search.Result) string {
	source := res.Payload.Metadata["source"]
	if source == "" {
		source = res.Payload.DocumentID
	}
	return fmt.Sprintf("%s p.%d", source, res.Payload.Page)
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxSnippetLength {
		return text[:maxSnippetLength] + "..."
	}
	return text
}
