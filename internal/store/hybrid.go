package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loreseek/loreseek/internal/errors"
)

// UpsertBatchSize caps the number of points per index service write.
const UpsertBatchSize = 100

// ScrollPageSize is the page size used when streaming a collection.
const ScrollPageSize = 256

// HybridIndex binds a dense vector collection and its lexical shadow
// under one name. The name may be an alias; it is resolved on every
// query, and when the alias is repointed the lexical side is rebuilt
// from the new collection before serving.
type HybridIndex struct {
	svc     IndexService
	lexical *LexicalIndex
	name    string

	mu       sync.Mutex
	resolved string
	nextID   uint64
}

// NewHybridIndex opens a hybrid index over the given collection or
// alias and builds the lexical side from its current contents.
func NewHybridIndex(ctx context.Context, svc IndexService, name string) (*HybridIndex, error) {
	lexical, err := NewLexicalIndex()
	if err != nil {
		return nil, err
	}
	h := &HybridIndex{svc: svc, lexical: lexical, name: name}

	if err := h.refresh(ctx); err != nil {
		_ = lexical.Close()
		return nil, err
	}
	return h, nil
}

// refresh re-resolves the alias and, if the target changed (or on first
// open), rebuilds the lexical index and the next-ID watermark from the
// collection.
func (h *HybridIndex) refresh(ctx context.Context) error {
	target, err := h.svc.ResolveAlias(ctx, h.name)
	if err != nil {
		// Plain collection names resolve to themselves.
		target = h.name
	}

	h.mu.Lock()
	changed := target != h.resolved || h.resolved == ""
	h.mu.Unlock()
	if !changed {
		return nil
	}

	points, err := h.scrollAll(ctx)
	if err != nil {
		return err
	}
	if err := h.lexical.Rebuild(ctx, points); err != nil {
		return err
	}

	var maxID uint64
	for _, p := range points {
		if p.ID >= maxID {
			maxID = p.ID + 1
		}
	}

	h.mu.Lock()
	if target != h.resolved {
		slog.Debug("hybrid index repointed", "name", h.name, "collection", target)
	}
	h.resolved = target
	h.nextID = maxID
	h.mu.Unlock()
	return nil
}

func (h *HybridIndex) scrollAll(ctx context.Context) ([]Point, error) {
	var all []Point
	var offset uint64
	for {
		page, next, err := h.svc.Scroll(ctx, h.name, offset, ScrollPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == 0 {
			break
		}
		offset = next
	}
	return all, nil
}

// Upsert writes payloads with their vectors in batches. On failure the
// returned IndexWriteError reports how many points were durably
// committed before the batch that failed.
func (h *HybridIndex) Upsert(ctx context.Context, payloads []Payload, vectors [][]float32) error {
	if len(payloads) != len(vectors) {
		return fmt.Errorf("payloads and vectors length mismatch: %d vs %d", len(payloads), len(vectors))
	}
	if len(payloads) == 0 {
		return nil
	}

	h.mu.Lock()
	points := make([]Point, len(payloads))
	for i := range payloads {
		points[i] = Point{ID: h.nextID, Vector: vectors[i], Payload: payloads[i]}
		h.nextID++
	}
	h.mu.Unlock()

	committed := 0
	for start := 0; start < len(points); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := h.svc.Upsert(ctx, h.name, points[start:end]); err != nil {
			return &IndexWriteError{
				Committed: committed,
				Err:       errors.Wrap(errors.ErrCodeIndexWrite, err),
			}
		}
		committed = end
	}

	all, err := h.scrollAll(ctx)
	if err != nil {
		return err
	}
	return h.lexical.Rebuild(ctx, all)
}

// SearchDense returns the nearest chunks by embedding similarity. It
// over-fetches by DenseOverFetch so fusion pruning downstream still has
// enough candidates, then keeps the top limit by raw similarity.
func (h *HybridIndex) SearchDense(ctx context.Context, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	if err := h.refresh(ctx); err != nil {
		return nil, err
	}
	results, err := h.svc.SearchVectors(ctx, h.name, vector, limit*DenseOverFetch, filter)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetByMetadata returns chunks matching the exact-metadata filter, in
// ID order. Used for direct page lookups rather than ranking.
func (h *HybridIndex) GetByMetadata(ctx context.Context, filter *Filter, limit int) ([]Point, error) {
	if err := h.refresh(ctx); err != nil {
		return nil, err
	}
	var matched []Point
	var offset uint64
	for {
		page, next, err := h.svc.Scroll(ctx, h.name, offset, ScrollPageSize)
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			if filter.Matches(p.Payload) {
				matched = append(matched, p)
				if limit > 0 && len(matched) == limit {
					return matched, nil
				}
			}
		}
		if next == 0 {
			return matched, nil
		}
		offset = next
	}
}

// SearchLexical returns the top BM25 chunks for the query text.
func (h *HybridIndex) SearchLexical(ctx context.Context, query string, limit int, filter *Filter) ([]ScoredPoint, error) {
	if err := h.refresh(ctx); err != nil {
		return nil, err
	}
	hits, err := h.lexical.Search(ctx, query, limit, filter)
	if err != nil {
		return nil, err
	}
	results := make([]ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		results = append(results, ScoredPoint{
			Point: Point{ID: hit.ID, Payload: hit.Payload},
			Score: hit.Score,
		})
	}
	return results, nil
}

// Count returns the number of chunks behind the index.
func (h *HybridIndex) Count(ctx context.Context) (int, error) {
	return h.svc.Count(ctx, h.name)
}

// Name returns the collection or alias this index is bound to.
func (h *HybridIndex) Name() string { return h.name }

// Close releases the lexical index.
func (h *HybridIndex) Close() error {
	return h.lexical.Close()
}
