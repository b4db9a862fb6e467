package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// lexicalDoc is the shape indexed into bleve. Heading context is
// indexed alongside the body so section titles are searchable.
type lexicalDoc struct {
	Text     string `json:"text"`
	Headings string `json:"headings"`
}

// LexicalIndex is the in-memory BM25 side of the hybrid index. It is
// rebuilt wholesale from the collection's points; at rulebook corpus
// sizes a rebuild is cheap, and it keeps the lexical view exactly in
// step with the vector view.
type LexicalIndex struct {
	mu       sync.RWMutex
	index    bleve.Index
	payloads map[string]Payload
	total    int
}

// NewLexicalIndex creates an empty lexical index.
func NewLexicalIndex() (*LexicalIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	return &LexicalIndex{
		index:    idx,
		payloads: make(map[string]Payload),
	}, nil
}

// Rebuild replaces the index contents with the given points.
func (l *LexicalIndex) Rebuild(ctx context.Context, points []Point) error {
	fresh, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create lexical index: %w", err)
	}

	payloads := make(map[string]Payload, len(points))
	batch := fresh.NewBatch()
	for _, p := range points {
		docID := strconv.FormatUint(p.ID, 10)
		doc := lexicalDoc{
			Text:     p.Payload.Text,
			Headings: headingText(p.Payload),
		}
		if err := batch.Index(docID, doc); err != nil {
			return fmt.Errorf("index point %d: %w", p.ID, err)
		}
		payloads[docID] = p.Payload
	}
	if err := fresh.Batch(batch); err != nil {
		return fmt.Errorf("build lexical batch: %w", err)
	}

	l.mu.Lock()
	old := l.index
	l.index = fresh
	l.payloads = payloads
	l.total = len(points)
	l.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// headingText flattens heading metadata into one searchable field.
func headingText(p Payload) string {
	var parts []string
	for _, key := range []string{"section", "subsection", "heading_path"} {
		if v := p.Metadata[key]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// LexicalHit is one BM25 result, scored by rank position so lexical
// scores are comparable across queries: 1 - rank/total.
type LexicalHit struct {
	ID      uint64
	Score   float64
	Payload Payload
}

// Search returns the top BM25 matches for the query.
func (l *LexicalIndex) Search(ctx context.Context, query string, limit int, filter *Filter) ([]LexicalHit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if strings.TrimSpace(query) == "" || l.total == 0 || limit <= 0 {
		return []LexicalHit{}, nil
	}

	match := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(match)
	fetch := limit
	if filter != nil && len(filter.Must) > 0 {
		fetch = limit * DenseOverFetch
	}
	req.Size = fetch

	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]LexicalHit, 0, limit)
	ranked := len(result.Hits)
	for rank, hit := range result.Hits {
		payload, ok := l.payloads[hit.ID]
		if !ok || !filter.Matches(payload) {
			continue
		}
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, LexicalHit{
			ID:      id,
			Score:   1 - float64(rank)/float64(ranked),
			Payload: payload,
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (l *LexicalIndex) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Close releases the underlying bleve index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index == nil {
		return nil
	}
	err := l.index.Close()
	l.index = nil
	return err
}
