package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookbrain-ai/bookbrain-be/types"
)

// In-memory implementations used when no MongoDB is configured and by
// tests. Semantics match the mongo-backed stores.

type MemoryDocumentRepo struct {
	mu    sync.RWMutex
	docs  map[string]types.Document
	pages map[string][]types.Page
}

func NewMemoryDocumentRepo() *MemoryDocumentRepo {
	return &MemoryDocumentRepo{
		docs:  make(map[string]types.Document),
		pages: make(map[string][]types.Page),
	}
}

func (r *MemoryDocumentRepo) CreateDocument(ctx context.Context, doc *types.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *MemoryDocumentRepo) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (r *MemoryDocumentRepo) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]*types.Document, 0, len(r.docs))
	for id := range r.docs {
		doc := r.docs[id]
		docs = append(docs, &doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (r *MemoryDocumentRepo) UpdateDocument(ctx context.Context, doc *types.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return ErrNotFound
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *MemoryDocumentRepo) DeleteDocument(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	delete(r.pages, id)
	return nil
}

func (r *MemoryDocumentRepo) SavePages(ctx context.Context, documentID string, pages []types.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make([]types.Page, len(pages))
	copy(copied, pages)
	sort.Slice(copied, func(i, j int) bool { return copied[i].Index < copied[j].Index })
	r.pages[documentID] = copied
	return nil
}

func (r *MemoryDocumentRepo) GetPages(ctx context.Context, documentID string) ([]types.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pages := make([]types.Page, len(r.pages[documentID]))
	copy(pages, r.pages[documentID])
	return pages, nil
}

type MemoryChunkRepo struct {
	mu     sync.RWMutex
	chunks map[string][]types.Chunk
}

func NewMemoryChunkRepo() *MemoryChunkRepo {
	return &MemoryChunkRepo{chunks: make(map[string][]types.Chunk)}
}

func (r *MemoryChunkRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []types.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make([]types.Chunk, len(chunks))
	copy(copied, chunks)
	r.chunks[documentID] = copied
	return nil
}

func (r *MemoryChunkRepo) GetChunks(ctx context.Context, documentID string) ([]types.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunks := make([]types.Chunk, len(r.chunks[documentID]))
	copy(chunks, r.chunks[documentID])
	return chunks, nil
}

func (r *MemoryChunkRepo) ListAllChunks(ctx context.Context) ([]types.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []types.Chunk
	ids := make([]string, 0, len(r.chunks))
	for id := range r.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		all = append(all, r.chunks[id]...)
	}
	return all, nil
}

func (r *MemoryChunkRepo) DeleteChunks(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chunks, documentID)
	return nil
}

func (r *MemoryChunkRepo) CountChunks(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, chunks := range r.chunks {
		n += len(chunks)
	}
	return n, nil
}

type MemoryInclusionRepo struct {
	mu      sync.RWMutex
	records map[string]types.InclusionRecord
}

func NewMemoryInclusionRepo() *MemoryInclusionRepo {
	return &MemoryInclusionRepo{records: make(map[string]types.InclusionRecord)}
}

func (r *MemoryInclusionRepo) SetIncluded(ctx context.Context, documentID string, included bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[documentID] = types.InclusionRecord{
		DocumentID: documentID,
		Included:   included,
		UpdatedAt:  time.Now().Unix(),
	}
	return nil
}

func (r *MemoryInclusionRepo) IsIncluded(ctx context.Context, documentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[documentID]
	if !ok {
		return false, nil
	}
	return record.Included, nil
}

func (r *MemoryInclusionRepo) ListIncluded(ctx context.Context) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	included := make(map[string]bool)
	for id, record := range r.records {
		if record.Included {
			included[id] = true
		}
	}
	return included, nil
}

func (r *MemoryInclusionRepo) Delete(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, documentID)
	return nil
}

var (
	_ DocumentRepo  = (*MemoryDocumentRepo)(nil)
	_ ChunkRepo     = (*MemoryChunkRepo)(nil)
	_ InclusionRepo = (*MemoryInclusionRepo)(nil)
)
