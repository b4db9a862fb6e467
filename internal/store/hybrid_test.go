package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreseek/loreseek/internal/errors"
)

func hybridFixture(t *testing.T) (*LocalIndexService, *HybridIndex) {
	t.Helper()
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "rulebooks_temp_aaaa", 4))
	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasCreate, Alias: "rulebooks_live", Collection: "rulebooks_temp_aaaa"},
	}))

	h, err := NewHybridIndex(ctx, svc, "rulebooks_live")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return svc, h
}

func TestHybridUpsertAssignsSequentialIDs(t *testing.T) {
	svc, h := hybridFixture(t)
	ctx := context.Background()

	payloads := []Payload{
		{Text: "attack rolls", DocumentID: "phb", Page: 1},
		{Text: "saving throws", DocumentID: "phb", Page: 2},
	}
	vectors := [][]float32{vec(4, 0), vec(4, 1)}
	require.NoError(t, h.Upsert(ctx, payloads, vectors))

	points, _, err := svc.Scroll(ctx, "rulebooks_live", 0, 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, uint64(0), points[0].ID)
	assert.Equal(t, uint64(1), points[1].ID)

	// A second upsert continues the watermark.
	require.NoError(t, h.Upsert(ctx, payloads[:1], vectors[:1]))
	count, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestHybridUpsertBatches(t *testing.T) {
	_, h := hybridFixture(t)
	ctx := context.Background()

	n := UpsertBatchSize*2 + 7
	payloads := make([]Payload, n)
	vectors := make([][]float32, n)
	for i := range payloads {
		payloads[i] = Payload{Text: fmt.Sprintf("chunk %d", i), DocumentID: "phb", Page: i + 1}
		vectors[i] = vec(4, i)
	}
	require.NoError(t, h.Upsert(ctx, payloads, vectors))

	count, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)
}

// failingService fails every upsert after the first n calls succeed.
type failingService struct {
	IndexService
	failAfter int
	calls     int
}

func (f *failingService) Upsert(ctx context.Context, name string, points []Point) error {
	f.calls++
	if f.calls > f.failAfter {
		return fmt.Errorf("simulated write failure")
	}
	return f.IndexService.Upsert(ctx, name, points)
}

func TestHybridUpsertReportsCommittedCount(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "rules", 4))

	failing := &failingService{IndexService: svc, failAfter: 1}
	h, err := NewHybridIndex(ctx, failing, "rules")
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	n := UpsertBatchSize + 50
	payloads := make([]Payload, n)
	vectors := make([][]float32, n)
	for i := range payloads {
		payloads[i] = Payload{Text: "chunk", DocumentID: "phb", Page: i + 1}
		vectors[i] = vec(4, i)
	}

	err = h.Upsert(ctx, payloads, vectors)
	require.Error(t, err)

	var writeErr *IndexWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, UpsertBatchSize, writeErr.Committed)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIndexWrite))

	count, err := svc.Count(ctx, "rules")
	require.NoError(t, err)
	assert.Equal(t, UpsertBatchSize, count)
}

func TestHybridSearchBothSides(t *testing.T) {
	_, h := hybridFixture(t)
	ctx := context.Background()

	payloads := []Payload{
		{Text: "A fireball deals 8d6 fire damage.", DocumentID: "phb", Page: 241},
		{Text: "Grappling uses an athletics check.", DocumentID: "phb", Page: 195},
	}
	vectors := [][]float32{vec(4, 0), vec(4, 1)}
	require.NoError(t, h.Upsert(ctx, payloads, vectors))

	dense, err := h.SearchDense(ctx, vec(4, 0), 1, nil)
	require.NoError(t, err)
	require.Len(t, dense, 1)
	assert.Equal(t, "A fireball deals 8d6 fire damage.", dense[0].Payload.Text)

	lexical, err := h.SearchLexical(ctx, "fireball", 1, nil)
	require.NoError(t, err)
	require.Len(t, lexical, 1)
	assert.Equal(t, uint64(0), lexical[0].ID)
}

func TestHybridGetByMetadata(t *testing.T) {
	_, h := hybridFixture(t)
	ctx := context.Background()

	payloads := []Payload{
		{Text: "page one text", DocumentID: "phb", Page: 1, Metadata: map[string]string{"source": "phb.pdf"}},
		{Text: "page two text", DocumentID: "phb", Page: 2, Metadata: map[string]string{"source": "phb.pdf"}},
		{Text: "other book", DocumentID: "dmg", Page: 2, Metadata: map[string]string{"source": "dmg.pdf"}},
	}
	vectors := [][]float32{vec(4, 0), vec(4, 1), vec(4, 2)}
	require.NoError(t, h.Upsert(ctx, payloads, vectors))

	filter := &Filter{Must: map[string]string{"source": "phb.pdf", MetaPage: "2"}}
	points, err := h.GetByMetadata(ctx, filter, 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "page two text", points[0].Payload.Text)
}

func TestHybridFollowsAliasSwap(t *testing.T) {
	svc, h := hybridFixture(t)
	ctx := context.Background()

	require.NoError(t, h.Upsert(ctx,
		[]Payload{{Text: "old generation content about wolves", DocumentID: "phb", Page: 1}},
		[][]float32{vec(4, 0)}))

	// Build the replacement generation directly through the service.
	require.NoError(t, svc.CreateCollection(ctx, "rulebooks_temp_bbbb", 4))
	require.NoError(t, svc.Upsert(ctx, "rulebooks_temp_bbbb", []Point{
		{ID: 0, Vector: vec(4, 2), Payload: Payload{Text: "new generation content about bears", DocumentID: "phb", Page: 1}},
	}))
	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasDelete, Alias: "rulebooks_live"},
		{Action: AliasCreate, Alias: "rulebooks_live", Collection: "rulebooks_temp_bbbb"},
	}))

	// Dense and lexical sides both serve the new generation.
	dense, err := h.SearchDense(ctx, vec(4, 2), 1, nil)
	require.NoError(t, err)
	require.Len(t, dense, 1)
	assert.Contains(t, dense[0].Payload.Text, "bears")

	lexical, err := h.SearchLexical(ctx, "bears", 1, nil)
	require.NoError(t, err)
	require.Len(t, lexical, 1)

	lexical, err = h.SearchLexical(ctx, "wolves", 1, nil)
	require.NoError(t, err)
	assert.Empty(t, lexical)
}
