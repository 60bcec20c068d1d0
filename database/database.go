package database

import (
	"context"

	"github.com/bookbrain-ai/bookbrain-be/types"
)

// ChunkEntry pairs a chunk with its embedding vector for indexing.
type ChunkEntry struct {
	Chunk  types.Chunk
	Vector []float32
}

// ChunkMatch is a query hit. Score is a similarity in [0,1], higher is
// more similar.
type ChunkMatch struct {
	Chunk types.Chunk
	Score float64
}

// VectorIndex stores chunk vectors and serves nearest-neighbor queries.
// The index is a rebuildable projection of chunk storage, never the source
// of truth for text. All vectors in one index share the same embedding
// model and dimensionality; offering anything else is rejected with
// types.ErrEmbeddingModelMismatch.
type VectorIndex interface {
	// ModelID reports the embedding model this index was built with.
	ModelID() string
	// Dimension reports the vector dimensionality of the index.
	Dimension() int
	// Upsert inserts or replaces entries by chunk id. Idempotent.
	Upsert(ctx context.Context, modelID string, entries []ChunkEntry) error
	// DeleteDocument removes every chunk belonging to a document.
	DeleteDocument(ctx context.Context, documentID string) error
	// Query returns the k nearest chunks restricted to allowed documents.
	// A nil allowed set means no restriction. Ties break by chunk id so
	// results are reproducible for a fixed index state.
	Query(ctx context.Context, modelID string, vector []float32, k int, allowed map[string]bool) ([]ChunkMatch, error)
	// Count reports the number of indexed chunks.
	Count(ctx context.Context) (int, error)
	// Reset drops all entries, used before a full rebuild.
	Reset(ctx context.Context) error
}
