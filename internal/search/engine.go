package search

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loreseek/loreseek/internal/embed"
	"github.com/loreseek/loreseek/internal/store"
)

// EngineConfig bounds query behavior.
type EngineConfig struct {
	DefaultLimit int
	MaxLimit     int
	QueryTimeout time.Duration
	Weights      Weights
}

// DefaultEngineConfig returns the standard query configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit: 5,
		MaxLimit:     50,
		QueryTimeout: 60 * time.Second,
		Weights:      DefaultWeights(),
	}
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = stderrors.New("nil dependency")

// Engine answers retrieval queries over one hybrid index. Dense and
// lexical searches run concurrently; a failure on one side degrades to
// the other side's results rather than failing the query.
type Engine struct {
	index    *store.HybridIndex
	embedder embed.Embedder
	fusion   *FusionReranker
	config   EngineConfig
}

// NewEngine creates a hybrid retrieval engine.
func NewEngine(index *store.HybridIndex, embedder embed.Embedder, cfg EngineConfig) (*Engine, error) {
	if index == nil || embedder == nil {
		return nil, ErrNilDependency
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultEngineConfig().DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultEngineConfig().MaxLimit
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultEngineConfig().QueryTimeout
	}
	fusion, err := NewFusionReranker(cfg.Weights)
	if err != nil {
		return nil, err
	}
	return &Engine{index: index, embedder: embedder, fusion: fusion, config: cfg}, nil
}

// Search embeds the query, runs dense and lexical retrieval in
// parallel, and returns the fused top results. Retrieval errors on the
// query path are logged and degrade to partial (possibly empty)
// results; a retrieval miss should weaken the answer, not crash the
// request.
func (e *Engine) Search(ctx context.Context, query string, limit int, filter *store.Filter) ([]Result, error) {
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.QueryTimeout)
	defer cancel()

	dense, sparse := e.parallelSearch(ctx, query, limit, filter)
	return e.fusion.Combine(dense, sparse, query, limit), nil
}

// parallelSearch runs both retrieval sides concurrently. Each side's
// failure is logged and yields an empty slice for that side.
func (e *Engine) parallelSearch(ctx context.Context, query string, limit int, filter *store.Filter) (dense, sparse []store.ScoredPoint) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vector, err := e.embedder.Embed(gctx, query)
		if err != nil {
			slog.Error("query embedding failed", "error", err)
			return nil
		}
		dense, err = e.index.SearchDense(gctx, vector, limit, filter)
		if err != nil {
			slog.Error("dense search failed", "error", err)
			dense = nil
		}
		return nil
	})

	g.Go(func() error {
		var err error
		sparse, err = e.index.SearchLexical(gctx, query, limit, filter)
		if err != nil {
			slog.Error("lexical search failed", "error", err)
			sparse = nil
		}
		return nil
	})

	// Errors never propagate from the goroutines; Wait only reports
	// context cancellation.
	if err := g.Wait(); err != nil {
		slog.Error("search cancelled", "error", err)
	}
	return dense, sparse
}

// PageResult is one chunk returned by a direct page lookup.
type PageResult struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Page     int               `json:"page"`
}

// ErrPageNotFound is returned when no chunk matches a page lookup.
var ErrPageNotFound = stderrors.New("page not found")

// GetBySourceAndPage returns the chunks attributed to one page of one
// source document, in chunk order.
func (e *Engine) GetBySourceAndPage(ctx context.Context, source string, page int) ([]PageResult, error) {
	filter := &store.Filter{Must: map[string]string{
		store.MetaSource: source,
		store.MetaPage:   strconv.Itoa(page),
	}}
	points, err := e.index.GetByMetadata(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrPageNotFound
	}

	results := make([]PageResult, len(points))
	for i, p := range points {
		results[i] = PageResult{
			Text:     p.Payload.Text,
			Metadata: p.Payload.Metadata,
			Page:     p.Payload.Page,
		}
	}
	return results, nil
}

// Count returns the number of chunks behind the engine's index.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.index.Count(ctx)
}
