package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreseek/loreseek/internal/errors"
)

func newEmbedServer(t *testing.T, dims int, failFirst int32) *httptest.Server {
	t.Helper()
	var calls int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		if atomic.AddInt32(&calls, 1) <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vecs := make([][]float32, len(req.Input))
		for i := range vecs {
			v := make([]float32, dims)
			v[i%dims] = 1
			vecs[i] = v
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Model: req.Model, Embeddings: vecs})
	}))
}

func TestHTTPEmbedderDetectsDimensions(t *testing.T) {
	srv := newEmbedServer(t, 8, 0)
	defer srv.Close()

	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{Host: srv.URL, Model: "test-model"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, 8, e.Dimensions())
	assert.Equal(t, "test-model", e.ModelName())
}

func TestHTTPEmbedderBatchOrderAndNormalization(t *testing.T) {
	srv := newEmbedServer(t, 8, 0)
	defer srv.Close()

	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Host: srv.URL, Model: "test-model", BatchSize: 2,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 8)
	}
}

func TestHTTPEmbedderRetriesTransientFailures(t *testing.T) {
	srv := newEmbedServer(t, 4, 1)
	defer srv.Close()

	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Host: srv.URL, Model: "test-model", SkipHealthCheck: true, Dimensions: 4,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestHTTPEmbedderUnreachableHost(t *testing.T) {
	_, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Host: "http://127.0.0.1:1", Model: "test-model",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreUnavailable))
}

func TestHTTPEmbedderDimensionMismatch(t *testing.T) {
	srv := newEmbedServer(t, 8, 0)
	defer srv.Close()

	_, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Host: srv.URL, Model: "test-model", Dimensions: 16,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDimensionMismatch))
}

func TestNewEmbedderAutoFallsBackToStatic(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Options{
		Backend: BackendAuto,
		Host:    "http://127.0.0.1:1",
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, "static", e.ModelName())
	assert.Equal(t, StaticDimensions, e.Dimensions())
}
