package database

import (
	"context"
	"testing"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "test-embed-v1"

func entry(chunkID, docID string, vector []float32) ChunkEntry {
	return ChunkEntry{
		Chunk: types.Chunk{
			ID:         chunkID,
			DocumentID: docID,
			Text:       "text of " + chunkID,
		},
		Vector: vector,
	}
}

func TestMemoryIndex_SelfRetrieval(t *testing.T) {
	idx := NewMemoryIndex(testModel, 3)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, testModel, []ChunkEntry{
		entry("a:0000", "a", []float32{1, 0, 0}),
		entry("a:0001", "a", []float32{0, 1, 0}),
		entry("a:0002", "a", []float32{0, 0, 1}),
	}))

	matches, err := idx.Query(ctx, testModel, []float32{0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a:0001", matches[0].Chunk.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestMemoryIndex_TieBreakByChunkID(t *testing.T) {
	idx := NewMemoryIndex(testModel, 2)
	ctx := context.Background()

	// Identical vectors, so ordering must come from the chunk id.
	require.NoError(t, idx.Upsert(ctx, testModel, []ChunkEntry{
		entry("b:0001", "b", []float32{1, 1}),
		entry("a:0001", "a", []float32{1, 1}),
		entry("c:0001", "c", []float32{1, 1}),
	}))

	matches, err := idx.Query(ctx, testModel, []float32{1, 1}, 3, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "a:0001", matches[0].Chunk.ID)
	assert.Equal(t, "b:0001", matches[1].Chunk.ID)
	assert.Equal(t, "c:0001", matches[2].Chunk.ID)
}

func TestMemoryIndex_ModelMismatch(t *testing.T) {
	idx := NewMemoryIndex(testModel, 2)
	ctx := context.Background()

	err := idx.Upsert(ctx, "other-model", []ChunkEntry{entry("a:0000", "a", []float32{1, 0})})
	assert.ErrorIs(t, err, types.ErrEmbeddingModelMismatch)

	_, err = idx.Query(ctx, "other-model", []float32{1, 0}, 1, nil)
	assert.ErrorIs(t, err, types.ErrEmbeddingModelMismatch)
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex(testModel, 3)
	ctx := context.Background()

	err := idx.Upsert(ctx, testModel, []ChunkEntry{entry("a:0000", "a", []float32{1, 0})})
	assert.ErrorIs(t, err, types.ErrEmbeddingModelMismatch)

	_, err = idx.Query(ctx, testModel, []float32{1, 0}, 1, nil)
	assert.ErrorIs(t, err, types.ErrEmbeddingModelMismatch)
}

func TestMemoryIndex_DeleteDocument(t *testing.T) {
	idx := NewMemoryIndex(testModel, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, testModel, []ChunkEntry{
		entry("a:0000", "a", []float32{1, 0}),
		entry("b:0000", "b", []float32{0, 1}),
	}))
	require.NoError(t, idx.DeleteDocument(ctx, "a"))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := idx.Query(ctx, testModel, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b:0000", matches[0].Chunk.ID)
}

func TestMemoryIndex_InclusionFilter(t *testing.T) {
	idx := NewMemoryIndex(testModel, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, testModel, []ChunkEntry{
		entry("a:0000", "a", []float32{1, 0}),
		entry("b:0000", "b", []float32{1, 0}),
	}))

	matches, err := idx.Query(ctx, testModel, []float32{1, 0}, 10, map[string]bool{"b": true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Chunk.DocumentID)
}

func TestMemoryIndex_UpsertReplaces(t *testing.T) {
	idx := NewMemoryIndex(testModel, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, testModel, []ChunkEntry{entry("a:0000", "a", []float32{1, 0})}))
	require.NoError(t, idx.Upsert(ctx, testModel, []ChunkEntry{entry("a:0000", "a", []float32{0, 1})}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := idx.Query(ctx, testModel, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestMemoryIndex_Reset(t *testing.T) {
	idx := NewMemoryIndex(testModel, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, testModel, []ChunkEntry{entry("a:0000", "a", []float32{1, 0})}))
	require.NoError(t, idx.Reset(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
