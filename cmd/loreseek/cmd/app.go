package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/loreseek/loreseek/internal/async"
	"github.com/loreseek/loreseek/internal/blob"
	"github.com/loreseek/loreseek/internal/config"
	"github.com/loreseek/loreseek/internal/embed"
	"github.com/loreseek/loreseek/internal/ingest"
	"github.com/loreseek/loreseek/internal/lifecycle"
	"github.com/loreseek/loreseek/internal/search"
	"github.com/loreseek/loreseek/internal/store"
)

// App holds the wired dependency graph shared by the CLI commands.
// Everything is constructed explicitly here so each command body stays
// a thin adapter between flags and internal packages.
type App struct {
	Config   *config.Config
	Blobs    blob.Store
	Embedder embed.Embedder
	Backend  string
	Sources  map[string]ingest.DocumentSource
	Manager  *lifecycle.Manager

	svc *store.LocalIndexService
}

// appOptions tweaks wiring for individual commands.
type appOptions struct {
	// staticEmbedder forces the deterministic embedder regardless of
	// configuration. Used by --offline.
	staticEmbedder bool

	// sink receives rebuild events; nil logs them via slog.
	sink async.Sink
}

// newApp loads configuration from the working directory and wires the
// full dependency graph.
func newApp(ctx context.Context, opts appOptions) (*App, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	return newAppWithConfig(ctx, cfg, opts)
}

func newAppWithConfig(ctx context.Context, cfg *config.Config, opts appOptions) (*App, error) {
	svc, err := store.NewLocalIndexService(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open index storage: %w", err)
	}

	blobs, err := blob.NewSQLiteStore(cfg.Storage.BlobPath)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("open state database: %w", err)
	}

	embedder, backend, err := buildEmbedder(ctx, cfg, opts)
	if err != nil {
		_ = blobs.Close()
		_ = svc.Close()
		return nil, err
	}

	sources := make(map[string]ingest.DocumentSource, len(cfg.Sources.Collections))
	for _, base := range cfg.Sources.Collections {
		sources[base] = ingest.NewDirSource(filepath.Join(cfg.Sources.SpoolDir, base))
	}

	manager := lifecycle.NewManager(svc, embedder, sources, blobs, opts.sink, lifecycle.Config{
		AdminTimeout: cfg.AdminTimeout(),
	})

	return &App{
		Config:   cfg,
		Blobs:    blobs,
		Embedder: embedder,
		Backend:  backend,
		Sources:  sources,
		Manager:  manager,
		svc:      svc,
	}, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config, opts appOptions) (embed.Embedder, string, error) {
	backend := embed.BackendAuto
	switch {
	case opts.staticEmbedder, cfg.Embeddings.Provider == "static":
		backend = embed.BackendStatic
	case cfg.Embeddings.Provider == "ollama":
		backend = embed.BackendHTTP
	}

	embedder, err := embed.NewEmbedder(ctx, embed.Options{
		Backend:    backend,
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
		Timeout:    cfg.QueryTimeout(),
	})
	if err != nil {
		return nil, "", err
	}
	return embedder, backend, nil
}

// Engine opens a query engine bound to the base's live alias. Fails
// with a hint to rebuild when the base has never been indexed.
func (a *App) Engine(ctx context.Context, base string) (*search.Engine, error) {
	idx, err := store.NewHybridIndex(ctx, a.svc, lifecycle.LiveAlias(base))
	if err != nil {
		return nil, fmt.Errorf("no index for %q (run 'loreseek rebuild %s' first): %w", base, base, err)
	}
	return search.NewEngine(idx, a.Embedder, search.EngineConfig{
		DefaultLimit: a.Config.Search.DefaultLimit,
		MaxLimit:     a.Config.Search.MaxLimit,
		QueryTimeout: a.Config.QueryTimeout(),
		Weights:      a.Config.Weights(),
	})
}

// Engines opens query engines for every configured base that has a
// live index, skipping bases that have never been built.
func (a *App) Engines(ctx context.Context) map[string]*search.Engine {
	engines := make(map[string]*search.Engine)
	for _, base := range a.Config.Sources.Collections {
		if eng, err := a.Engine(ctx, base); err == nil {
			engines[base] = eng
		}
	}
	return engines
}

// IndexService exposes the raw index service for status reporting.
func (a *App) IndexService() *store.LocalIndexService { return a.svc }

// Close releases storage handles.
func (a *App) Close() error {
	var firstErr error
	if err := a.Blobs.Close(); err != nil {
		firstErr = err
	}
	if err := a.svc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
