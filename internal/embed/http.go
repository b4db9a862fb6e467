package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/loreseek/loreseek/internal/errors"
)

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// Host is the base URL of the embedding service, e.g. http://localhost:11434.
	Host string

	// Model is the embedding model to request.
	Model string

	// Dimensions is the expected embedding dimension. Zero means detect
	// from the first response.
	Dimensions int

	// BatchSize is the maximum number of texts per request.
	BatchSize int

	// Timeout bounds each embedding request.
	Timeout time.Duration

	// MaxRetries is the retry budget for transient failures.
	MaxRetries int

	// SkipHealthCheck disables the startup availability probe.
	SkipHealthCheck bool
}

// Defaults for the HTTP embedder.
const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "nomic-embed-text"
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// HTTPEmbedder generates embeddings against an Ollama-compatible
// /api/embed endpoint.
type HTTPEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    HTTPConfig
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates an HTTP embedder. Unless SkipHealthCheck is
// set, it probes the service and detects embedding dimensions.
func NewHTTPEmbedder(ctx context.Context, cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	// Per-request deadlines come from context.WithTimeout, not a static
	// client timeout, so retries each get a fresh budget.
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}

	e := &HTTPEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		probe, err := e.requestEmbeddings(checkCtx, []string{"dimension probe"})
		if err != nil {
			transport.CloseIdleConnections()
			return nil, errors.New(errors.ErrCodeStoreUnavailable,
				fmt.Sprintf("embedding service unreachable at %s", cfg.Host), err)
		}
		if len(probe) > 0 && len(probe[0]) > 0 {
			detected := len(probe[0])
			if e.dims != 0 && e.dims != detected {
				transport.CloseIdleConnections()
				return nil, errors.New(errors.ErrCodeDimensionMismatch,
					fmt.Sprintf("model %s produces %d dimensions, configured %d",
						cfg.Model, detected, e.dims), nil)
			}
			e.dims = detected
		}
	}
	if e.dims == 0 {
		e.dims = DefaultDimensions
	}

	return e, nil
}

func (e *HTTPEmbedder) requestEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEmbedFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		wrapped := errors.New(errors.ErrCodeEmbedFailed,
			fmt.Sprintf("embedding failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
		// Client errors are not going to heal on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			wrapped.Retryable = false
		}
		return nil, wrapped
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(errors.ErrCodeEmbedFailed, "decode embed response", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, errors.New(errors.ErrCodeEmbedFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(result.Embeddings)), nil)
	}
	return result.Embeddings, nil
}

// Embed generates the embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Requests are
// chunked to the configured batch size and retried on transient errors.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := e.sanitize(texts[start:end])

		var vecs [][]float32
		retryCfg := errors.DefaultRetryConfig()
		retryCfg.MaxRetries = e.config.MaxRetries
		err := errors.Retry(ctx, retryCfg, func() error {
			reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
			defer cancel()
			var reqErr error
			vecs, reqErr = e.requestEmbeddings(reqCtx, batch)
			return reqErr
		})
		if err != nil {
			return nil, err
		}
		for i, v := range vecs {
			if e.dims != 0 && len(v) != e.dims {
				return nil, errors.New(errors.ErrCodeDimensionMismatch,
					fmt.Sprintf("embedding %d has %d dimensions, expected %d",
						start+i, len(v), e.dims), nil)
			}
			results = append(results, normalizeVector(v))
		}
		slog.Debug("embedded batch", "from", start, "to", end, "model", e.config.Model)
	}
	return results, nil
}

// sanitize replaces blank inputs with a single space so the backend
// does not reject the batch.
func (e *HTTPEmbedder) sanitize(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = " "
		} else {
			out[i] = t
		}
	}
	return out
}

// Dimensions returns the embedding dimension.
func (e *HTTPEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *HTTPEmbedder) ModelName() string { return e.config.Model }

// Available probes the service with a trivial embedding request.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()
	_, err := e.requestEmbeddings(probeCtx, []string{"ping"})
	return err == nil
}

// Close releases pooled connections.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
