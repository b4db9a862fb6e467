package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backend names accepted by NewEmbedder.
const (
	BackendHTTP   = "http"
	BackendStatic = "static"
	BackendAuto   = "auto"
)

// Options selects and configures an embedder backend.
type Options struct {
	Backend    string
	Host       string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	CacheSize  int
}

// NewEmbedder constructs the embedder for the given options and wraps it
// with the LRU cache. Backend "auto" tries the HTTP service first and
// falls back to the static embedder when it is unreachable.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch opts.Backend {
	case BackendStatic:
		inner = NewStaticEmbedder()
	case BackendHTTP, "":
		inner, err = newHTTP(ctx, opts)
		if err != nil {
			return nil, err
		}
	case BackendAuto:
		inner, err = newHTTP(ctx, opts)
		if err != nil {
			slog.Warn("embedding service unavailable, using static embedder", "error", err)
			inner = NewStaticEmbedder()
		}
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", opts.Backend)
	}

	return NewCachedEmbedder(inner, opts.CacheSize), nil
}

func newHTTP(ctx context.Context, opts Options) (Embedder, error) {
	return NewHTTPEmbedder(ctx, HTTPConfig{
		Host:       opts.Host,
		Model:      opts.Model,
		Dimensions: opts.Dimensions,
		BatchSize:  opts.BatchSize,
		Timeout:    opts.Timeout,
	})
}
