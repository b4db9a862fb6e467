// Package embed generates dense vector embeddings for chunk text and
// queries. The primary backend is an Ollama-compatible HTTP endpoint;
// a deterministic hash-based embedder is available for offline use and
// tests.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// MaxBatchSize is the maximum allowed batch size for a single
	// embedding request.
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout is the default timeout for a single embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultConnectTimeout is the timeout for the initial health check.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultDimensions is the fallback embedding dimension when the
	// backend does not report one.
	DefaultDimensions = 768

	// StaticDimensions is the embedding dimension of the hash-based
	// embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder is ready for requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
