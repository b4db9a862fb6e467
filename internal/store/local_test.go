package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(dims int, hot int) []float32 {
	v := make([]float32, dims)
	v[hot%dims] = 1
	return v
}

func testPoint(id uint64, dims int, text string) Point {
	return Point{
		ID:     id,
		Vector: vec(dims, int(id)),
		Payload: Payload{
			Text:       text,
			DocumentID: "phb",
			Page:       int(id) + 1,
		},
	}
}

func newMemoryService(t *testing.T) *LocalIndexService {
	t.Helper()
	svc, err := NewLocalIndexService("")
	require.NoError(t, err)
	return svc
}

func TestCreateAndListCollections(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateCollection(ctx, "rulebooks_temp_a1b2", 4))
	require.NoError(t, svc.CreateCollection(ctx, "rulebooks_temp_c3d4", 4))

	err := svc.CreateCollection(ctx, "rulebooks_temp_a1b2", 4)
	assert.ErrorIs(t, err, ErrCollectionExists)

	infos, err := svc.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "rulebooks_temp_a1b2", infos[0].Name)
	assert.Equal(t, 4, infos[0].Dimensions)
}

func TestUpsertAndSearch(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "rules", 4))

	points := []Point{
		testPoint(0, 4, "attack rolls"),
		testPoint(1, 4, "saving throws"),
		testPoint(2, 4, "movement"),
	}
	require.NoError(t, svc.Upsert(ctx, "rules", points))

	count, err := svc.Count(ctx, "rules")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := svc.SearchVectors(ctx, "rules", vec(4, 1), 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(1), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestUpsertReplacesExistingID(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "rules", 4))

	require.NoError(t, svc.Upsert(ctx, "rules", []Point{testPoint(0, 4, "old text")}))

	updated := testPoint(0, 4, "new text")
	updated.Vector = vec(4, 3)
	require.NoError(t, svc.Upsert(ctx, "rules", []Point{updated}))

	count, err := svc.Count(ctx, "rules")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := svc.SearchVectors(ctx, "rules", vec(4, 3), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new text", results[0].Payload.Text)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "rules", 4))

	err := svc.Upsert(ctx, "rules", []Point{{ID: 0, Vector: vec(8, 0)}})
	assert.Error(t, err)
}

func TestSearchWithFilter(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "rules", 4))

	combat := testPoint(0, 4, "opportunity attacks")
	combat.Payload.Metadata = map[string]string{"section": "Combat"}
	spells := testPoint(1, 4, "spell slots")
	spells.Payload.Metadata = map[string]string{"section": "Spellcasting"}
	require.NoError(t, svc.Upsert(ctx, "rules", []Point{combat, spells}))

	filter := &Filter{Must: map[string]string{"section": "Combat"}}
	results, err := svc.SearchVectors(ctx, "rules", vec(4, 1), 2, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "opportunity attacks", results[0].Payload.Text)
}

func TestFilterByDocumentID(t *testing.T) {
	f := &Filter{Must: map[string]string{MetaDocumentID: "phb"}}
	assert.True(t, f.Matches(Payload{DocumentID: "phb"}))
	assert.False(t, f.Matches(Payload{DocumentID: "dmg"}))

	var nilFilter *Filter
	assert.True(t, nilFilter.Matches(Payload{DocumentID: "anything"}))
}

func TestScrollPagesInOrder(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "rules", 4))

	points := make([]Point, 5)
	for i := range points {
		points[i] = testPoint(uint64(i), 4, "chunk")
	}
	require.NoError(t, svc.Upsert(ctx, "rules", points))

	page, next, err := svc.Scroll(ctx, "rules", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(0), page[0].ID)
	assert.Equal(t, uint64(2), next)

	page, next, err = svc.Scroll(ctx, "rules", next, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, uint64(0), next)
}

func TestAliasLifecycle(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "rulebooks_temp_aaaa", 4))
	require.NoError(t, svc.CreateCollection(ctx, "rulebooks_temp_bbbb", 4))

	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasCreate, Alias: "rulebooks_live", Collection: "rulebooks_temp_aaaa"},
	}))

	target, err := svc.ResolveAlias(ctx, "rulebooks_live")
	require.NoError(t, err)
	assert.Equal(t, "rulebooks_temp_aaaa", target)

	// Repoint in one batch.
	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasDelete, Alias: "rulebooks_live"},
		{Action: AliasCreate, Alias: "rulebooks_live", Collection: "rulebooks_temp_bbbb"},
	}))

	target, err = svc.ResolveAlias(ctx, "rulebooks_live")
	require.NoError(t, err)
	assert.Equal(t, "rulebooks_temp_bbbb", target)
}

func TestUpdateAliasesAtomicOnFailure(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "gen_a", 4))

	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasCreate, Alias: "live", Collection: "gen_a"},
	}))

	// Second op targets a missing collection; the whole batch must fail.
	err := svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasDelete, Alias: "live"},
		{Action: AliasCreate, Alias: "live", Collection: "gen_missing"},
	})
	require.ErrorIs(t, err, ErrCollectionNotFound)

	target, err := svc.ResolveAlias(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "gen_a", target)
}

func TestAliasResolutionOnDataOps(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "gen_a", 4))
	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasCreate, Alias: "live", Collection: "gen_a"},
	}))

	require.NoError(t, svc.Upsert(ctx, "live", []Point{testPoint(0, 4, "via alias")}))

	count, err := svc.Count(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.Count(ctx, "gen_a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteCollectionGuardedByAlias(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateCollection(ctx, "gen_a", 4))
	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasCreate, Alias: "live", Collection: "gen_a"},
	}))

	err := svc.DeleteCollection(ctx, "gen_a")
	assert.ErrorIs(t, err, ErrCollectionAliased)

	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasDelete, Alias: "live"},
	}))
	require.NoError(t, svc.DeleteCollection(ctx, "gen_a"))

	_, err = svc.Count(ctx, "gen_a")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	svc, err := NewLocalIndexService(dir)
	require.NoError(t, err)
	require.NoError(t, svc.CreateCollection(ctx, "gen_a", 4))
	require.NoError(t, svc.Upsert(ctx, "gen_a", []Point{
		testPoint(0, 4, "persisted chunk"),
	}))
	require.NoError(t, svc.UpdateAliases(ctx, []AliasOp{
		{Action: AliasCreate, Alias: "live", Collection: "gen_a"},
	}))
	require.NoError(t, svc.Close())

	reopened, err := NewLocalIndexService(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	target, err := reopened.ResolveAlias(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "gen_a", target)

	results, err := reopened.SearchVectors(ctx, "live", vec(4, 0), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted chunk", results[0].Payload.Text)
}

func TestDirectoryLockExcludesSecondProcess(t *testing.T) {
	dir := t.TempDir()

	svc, err := NewLocalIndexService(dir)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	_, err = NewLocalIndexService(dir)
	assert.Error(t, err)
}
