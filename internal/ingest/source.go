// Package ingest defines the document source contract the indexing
// pipeline consumes: documents as ordered pages of raw text plus font
// spans, produced upstream by the PDF extraction collaborator.
package ingest

import (
	"context"

	"github.com/loreseek/loreseek/internal/structure"
)

// PageData is one extracted page of a document.
type PageData struct {
	PageNumber int                  `json:"page_number"`
	Text       string               `json:"text"`
	Spans      []structure.FontSpan `json:"spans,omitempty"`
}

// Document is one extracted document with its pages in order.
type Document struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	TotalPages int               `json:"total_pages"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Pages      []PageData        `json:"pages"`
}

// DocumentSource yields extracted documents for indexing.
type DocumentSource interface {
	// List returns the IDs of all available documents.
	List(ctx context.Context) ([]string, error)

	// Load returns one document with pages sorted by page number.
	Load(ctx context.Context, id string) (*Document, error)
}
