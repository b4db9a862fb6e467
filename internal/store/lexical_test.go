package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexicalPoint(id uint64, text string, meta map[string]string) Point {
	return Point{
		ID: id,
		Payload: Payload{
			Text:       text,
			DocumentID: "phb",
			Page:       int(id) + 1,
			Metadata:   meta,
		},
	}
}

func TestLexicalSearchRanksByRelevance(t *testing.T) {
	idx, err := NewLexicalIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Rebuild(ctx, []Point{
		lexicalPoint(0, "A fireball spell deals fire damage in a twenty foot radius.", nil),
		lexicalPoint(1, "Grappling uses an athletics check against the target.", nil),
		lexicalPoint(2, "Fire resistance halves fire damage taken.", nil),
	}))

	hits, err := idx.Search(ctx, "fireball", 3, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, uint64(0), hits[0].ID)
	assert.Equal(t, 1.0, hits[0].Score)
}

func TestLexicalScoreIsRankBased(t *testing.T) {
	idx, err := NewLexicalIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Rebuild(ctx, []Point{
		lexicalPoint(0, "fire fire fire fire", nil),
		lexicalPoint(1, "fire damage roll", nil),
	}))

	hits, err := idx.Search(ctx, "fire", 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, 0.5, hits[1].Score)
}

func TestLexicalSearchMatchesHeadings(t *testing.T) {
	idx, err := NewLexicalIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Rebuild(ctx, []Point{
		lexicalPoint(0, "You can move through a hostile creature's space only if it is two sizes different.",
			map[string]string{"section": "Combat", "heading_path": "Combat > Movement and Position"}),
	}))

	hits, err := idx.Search(ctx, "movement", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Combat", hits[0].Payload.Metadata["section"])
}

func TestLexicalSearchWithFilter(t *testing.T) {
	idx, err := NewLexicalIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Rebuild(ctx, []Point{
		lexicalPoint(0, "fire damage from spells", map[string]string{"section": "Spellcasting"}),
		lexicalPoint(1, "fire damage from traps", map[string]string{"section": "Hazards"}),
	}))

	filter := &Filter{Must: map[string]string{"section": "Hazards"}}
	hits, err := idx.Search(ctx, "fire damage", 2, filter)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(1), hits[0].ID)
}

func TestLexicalEmptyQueryAndEmptyIndex(t *testing.T) {
	idx, err := NewLexicalIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	hits, err := idx.Search(ctx, "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Rebuild(ctx, []Point{lexicalPoint(0, "content", nil)}))
	hits, err = idx.Search(ctx, "   ", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalRebuildReplacesContents(t *testing.T) {
	idx, err := NewLexicalIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Rebuild(ctx, []Point{lexicalPoint(0, "old corpus about dragons", nil)}))
	require.NoError(t, idx.Rebuild(ctx, []Point{lexicalPoint(7, "new corpus about liches", nil)}))

	assert.Equal(t, 1, idx.Count())

	hits, err := idx.Search(ctx, "dragons", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "liches", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(7), hits[0].ID)
}
