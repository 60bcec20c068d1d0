package database

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bookbrain-ai/bookbrain-be/types"
)

// MemoryIndex is a brute-force cosine similarity index held in memory.
// Queries take a read lock and run freely concurrent; writes are
// serialized, so a document's chunk set is replaced atomically and no
// query ever observes a half-updated document.
type MemoryIndex struct {
	mu        sync.RWMutex
	modelID   string
	dimension int
	entries   map[string]ChunkEntry          // chunk id -> entry
	byDoc     map[string]map[string]struct{} // document id -> chunk ids
}

func NewMemoryIndex(modelID string, dimension int) *MemoryIndex {
	return &MemoryIndex{
		modelID:   modelID,
		dimension: dimension,
		entries:   make(map[string]ChunkEntry),
		byDoc:     make(map[string]map[string]struct{}),
	}
}

func (idx *MemoryIndex) ModelID() string { return idx.modelID }

func (idx *MemoryIndex) Dimension() int { return idx.dimension }

func (idx *MemoryIndex) Upsert(ctx context.Context, modelID string, entries []ChunkEntry) error {
	if modelID != idx.modelID {
		return fmt.Errorf("%w: index built with %q, got %q", types.ErrEmbeddingModelMismatch, idx.modelID, modelID)
	}
	for _, e := range entries {
		if len(e.Vector) != idx.dimension {
			return fmt.Errorf("%w: expected dimension %d, got %d", types.ErrEmbeddingModelMismatch, idx.dimension, len(e.Vector))
		}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, e := range entries {
		if old, ok := idx.entries[e.Chunk.ID]; ok {
			delete(idx.byDoc[old.Chunk.DocumentID], e.Chunk.ID)
		}
		idx.entries[e.Chunk.ID] = e
		if idx.byDoc[e.Chunk.DocumentID] == nil {
			idx.byDoc[e.Chunk.DocumentID] = make(map[string]struct{})
		}
		idx.byDoc[e.Chunk.DocumentID][e.Chunk.ID] = struct{}{}
	}
	return nil
}

func (idx *MemoryIndex) DeleteDocument(ctx context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for chunkID := range idx.byDoc[documentID] {
		delete(idx.entries, chunkID)
	}
	delete(idx.byDoc, documentID)
	return nil
}

func (idx *MemoryIndex) Query(ctx context.Context, modelID string, vector []float32, k int, allowed map[string]bool) ([]ChunkMatch, error) {
	if modelID != idx.modelID {
		return nil, fmt.Errorf("%w: index built with %q, got %q", types.ErrEmbeddingModelMismatch, idx.modelID, modelID)
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: expected dimension %d, got %d", types.ErrEmbeddingModelMismatch, idx.dimension, len(vector))
	}
	if k <= 0 {
		k = 5
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]ChunkMatch, 0, len(idx.entries))
	for _, e := range idx.entries {
		if allowed != nil && !allowed[e.Chunk.DocumentID] {
			continue
		}
		matches = append(matches, ChunkMatch{Chunk: e.Chunk, Score: cosine(vector, e.Vector)})
	}

	// Sort by score descending, ties broken by chunk id for reproducibility.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

func (idx *MemoryIndex) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries), nil
}

func (idx *MemoryIndex) Reset(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]ChunkEntry)
	idx.byDoc = make(map[string]map[string]struct{})
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ VectorIndex = (*MemoryIndex)(nil)
