// Package lifecycle manages index rebuilds: staging a fresh collection
// per base name, running the full ingest pipeline against it, and
// atomically repointing the live alias, with rollback on failure and
// operator escalation when a swap outcome is unknown.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/loreseek/loreseek/internal/chunk"
	"github.com/loreseek/loreseek/internal/embed"
	"github.com/loreseek/loreseek/internal/errors"
	"github.com/loreseek/loreseek/internal/ingest"
	"github.com/loreseek/loreseek/internal/store"
	"github.com/loreseek/loreseek/internal/structure"
)

// Pipeline turns one extracted document into index-ready payloads and
// vectors: structure analysis, cross-page chunking, then embedding.
type Pipeline struct {
	embedder embed.Embedder
	chunker  *chunk.CrossPageChunker
}

// NewPipeline creates the ingest pipeline.
func NewPipeline(embedder embed.Embedder) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		chunker:  chunk.NewCrossPageChunker(),
	}
}

// ProcessDocument runs the full per-document flow. Documents with no
// usable page text fail with a malformed-document error; individual
// blank pages are simply skipped.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc *ingest.Document) ([]store.Payload, [][]float32, error) {
	analyzer := structure.NewAnalyzer()
	analyzer.ResetForDocument(doc.ID)

	// Sampling pass over the whole document first, so heading
	// classification is stable from page one of the annotation pass.
	for _, page := range doc.Pages {
		analyzer.ObservePage(page.PageNumber, page.Spans)
	}

	pages := make([]chunk.Page, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		headingCtx := analyzer.AnnotatePage(page.PageNumber, page.Spans)

		meta := headingCtx.Metadata()
		meta[chunk.MetaSource] = doc.Source
		for k, v := range doc.Metadata {
			meta[k] = v
		}

		pages = append(pages, chunk.Page{
			DocumentID: doc.ID,
			PageNumber: page.PageNumber,
			TotalPages: doc.TotalPages,
			Text:       page.Text,
			Metadata:   meta,
		})
	}

	chunks := p.chunker.ChunkDocument(pages)
	if len(chunks) == 0 {
		return nil, nil, errors.New(errors.ErrCodeMalformedDocument,
			fmt.Sprintf("document %s has no extractable text", doc.ID), nil)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("embed document %s: %w", doc.ID, err)
	}

	payloads := make([]store.Payload, len(chunks))
	for i, c := range chunks {
		payloads[i] = store.Payload{
			Text:       c.Text,
			DocumentID: c.DocumentID,
			Page:       c.OriginPage,
			Metadata:   c.Metadata,
		}
	}
	return payloads, vectors, nil
}
