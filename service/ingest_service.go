package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bookbrain-ai/bookbrain-be/database"
	"github.com/bookbrain-ai/bookbrain-be/repository"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/bookbrain-ai/bookbrain-be/utils"
	"github.com/google/uuid"
)

// IngestService runs the full pipeline for one document: extract pages,
// persist them, chunk, embed, and swap the document's entries in the
// vector index. Mutation is serialized per document; different documents
// ingest concurrently.
type IngestService struct {
	uploadDir  string
	extractor  *ExtractService
	chunker    *ChunkService
	embedder   Embedder
	index      database.VectorIndex
	documents  repository.DocumentRepo
	chunks     repository.ChunkRepo
	inclusions repository.InclusionRepo

	locksMu  sync.Mutex
	docLocks map[string]*sync.Mutex
}

func NewIngestService(
	uploadDir string,
	extractor *ExtractService,
	chunker *ChunkService,
	embedder Embedder,
	index database.VectorIndex,
	documents repository.DocumentRepo,
	chunks repository.ChunkRepo,
	inclusions repository.InclusionRepo,
) *IngestService {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		panic(err)
	}
	return &IngestService{
		uploadDir:  uploadDir,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		documents:  documents,
		chunks:     chunks,
		inclusions: inclusions,
		docLocks:   make(map[string]*sync.Mutex),
	}
}

// IngestFile saves an uploaded file under the upload directory and ingests it.
func (s *IngestService) IngestFile(ctx context.Context, req types.IngestRequest, file *multipart.FileHeader, progress chan<- types.ProcessingDocumentStatus) (*types.Document, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" && ext != ".docx" {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedFileType, ext)
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	name := req.Title
	if name == "" {
		name = utils.GetFileNameWithoutExt(file.Filename)
	}
	filename := fmt.Sprintf("%s_%d%s", sanitizeFileName(name), time.Now().Unix(), ext)

	destPath := filepath.Join(s.uploadDir, filename)
	dst, err := os.Create(destPath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return nil, err
	}

	return s.IngestPath(ctx, req, destPath, progress)
}

// IngestPath ingests the document at path. Setting req.DocumentID to an
// existing document's id replaces that document's content in place. On
// cancellation the index, chunk storage, inclusion store and document
// storage are restored to their pre-ingestion state.
func (s *IngestService) IngestPath(ctx context.Context, req types.IngestRequest, path string, progress chan<- types.ProcessingDocumentStatus) (*types.Document, error) {
	if s.embedder.ModelID() != s.index.ModelID() {
		return nil, fmt.Errorf("%w: embedder %q vs index %q",
			types.ErrEmbeddingModelMismatch, s.embedder.ModelID(), s.index.ModelID())
	}

	title := req.Title
	if title == "" {
		title = utils.GetFileNameWithoutExt(path)
	}
	docID := req.DocumentID
	if docID == "" {
		docID = uuid.NewString()
	}

	unlock := s.lockDocument(docID)
	defer unlock()

	var prev *types.Document
	if req.DocumentID != "" {
		existing, err := s.documents.GetDocument(ctx, docID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		prev = existing
	}

	now := time.Now().Unix()
	doc := &types.Document{
		ID:        docID,
		Title:     title,
		Author:    req.Author,
		Source:    path,
		Status:    types.DocStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev != nil {
		doc.CreatedAt = prev.CreatedAt
		if err := s.documents.UpdateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to update document: %w", err)
		}
	} else {
		if err := s.documents.CreateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
	}

	result, err := s.extractor.Extract(ctx, doc, path, progress)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.rollback(doc.ID, prev)
		return nil, err
	}
	if errors.Is(err, types.ErrExtractionFailed) {
		// Keep the document so it can surface for manual review.
		if saveErr := s.savePagesAndStatus(ctx, doc, result); saveErr != nil {
			return doc, errors.Join(err, saveErr)
		}
		return doc, err
	}
	if err != nil {
		s.rollback(doc.ID, prev)
		return nil, err
	}

	if err := s.savePagesAndStatus(ctx, doc, result); err != nil {
		s.rollback(doc.ID, prev)
		return nil, err
	}

	chunks := s.chunker.Chunk(doc.ID, result.Pages)
	sendProgress(ctx, progress, types.ProcessingDocumentStatus{
		Status:  "processing",
		Message: fmt.Sprintf("Embedding %d chunks", len(chunks)),
	})

	if err := s.indexChunks(ctx, doc.ID, chunks); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.rollback(doc.ID, prev)
			return nil, err
		}
		doc.Status = types.DocStatusFailed
		doc.UpdatedAt = time.Now().Unix()
		s.documents.UpdateDocument(ctx, doc)
		return doc, err
	}

	sendProgress(ctx, progress, types.ProcessingDocumentStatus{
		Status:         "completed",
		Message:        "Done processing document",
		Progress:       1,
		TotalPages:     doc.TotalPages,
		ProcessedPages: doc.TotalPages,
	})
	return doc, nil
}

// indexChunks embeds the chunk set and replaces the document's entries:
// the old set is deleted and the new one inserted under the same document
// lock, so queries see either the old or the new complete set.
func (s *IngestService) indexChunks(ctx context.Context, documentID string, chunks []types.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	entries := make([]database.ChunkEntry, len(chunks))
	for i := range chunks {
		entries[i] = database.ChunkEntry{Chunk: chunks[i], Vector: vectors[i]}
	}

	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to clear old index entries: %w", err)
	}
	if err := s.index.Upsert(ctx, s.embedder.ModelID(), entries); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	if err := s.chunks.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return fmt.Errorf("failed to persist chunks: %w", err)
	}
	return nil
}

// DeleteDocument cascades: index entries, stored chunks, pages, inclusion
// record and the document itself.
func (s *IngestService) DeleteDocument(ctx context.Context, documentID string) error {
	unlock := s.lockDocument(documentID)
	defer unlock()

	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.chunks.DeleteChunks(ctx, documentID); err != nil {
		return err
	}
	if err := s.inclusions.Delete(ctx, documentID); err != nil {
		return err
	}
	return s.documents.DeleteDocument(ctx, documentID)
}

// SetIncluded toggles retrieval visibility for a document. No chunk or
// vector data is touched; the next query sees the new state.
func (s *IngestService) SetIncluded(ctx context.Context, documentID string, included bool) error {
	if _, err := s.documents.GetDocument(ctx, documentID); err != nil {
		return err
	}
	return s.inclusions.SetIncluded(ctx, documentID, included)
}

// RebuildIndex reconstructs the vector index from stored chunks. The
// index is a cache; chunk storage is the ledger.
func (s *IngestService) RebuildIndex(ctx context.Context) error {
	if s.embedder.ModelID() != s.index.ModelID() {
		return fmt.Errorf("%w: embedder %q vs index %q",
			types.ErrEmbeddingModelMismatch, s.embedder.ModelID(), s.index.ModelID())
	}
	all, err := s.chunks.ListAllChunks(ctx)
	if err != nil {
		return err
	}
	if err := s.index.Reset(ctx); err != nil {
		return err
	}

	byDoc := make(map[string][]types.Chunk)
	for _, c := range all {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}
	for documentID, chunks := range byDoc {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to re-embed document %s: %w", documentID, err)
		}
		entries := make([]database.ChunkEntry, len(chunks))
		for i := range chunks {
			entries[i] = database.ChunkEntry{Chunk: chunks[i], Vector: vectors[i]}
		}
		if err := s.index.Upsert(ctx, s.embedder.ModelID(), entries); err != nil {
			return fmt.Errorf("failed to re-index document %s: %w", documentID, err)
		}
		log.Printf("Rebuilt index for document %s (%d chunks)", documentID, len(chunks))
	}
	return nil
}

// Stats reports knowledge base counters for the explorer UI.
func (s *IngestService) Stats(ctx context.Context) (*types.KnowledgeStatsResponse, error) {
	docs, err := s.documents.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	included, err := s.inclusions.ListIncluded(ctx)
	if err != nil {
		return nil, err
	}
	chunkCount, err := s.chunks.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	return &types.KnowledgeStatsResponse{
		DocumentCount:  len(docs),
		IncludedCount:  len(included),
		ChunkCount:     chunkCount,
		Dimension:      s.embedder.Dimension(),
		EmbeddingModel: s.embedder.ModelID(),
	}, nil
}

func (s *IngestService) savePagesAndStatus(ctx context.Context, doc *types.Document, result *types.ExtractionResult) error {
	if err := s.documents.SavePages(ctx, doc.ID, result.Pages); err != nil {
		return fmt.Errorf("failed to save pages: %w", err)
	}
	doc.TotalPages = len(result.Pages)
	doc.Status = result.Status
	doc.UpdatedAt = time.Now().Unix()
	if err := s.documents.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

// rollback undoes a cancelled or failed ingestion run. A fresh context
// is used because the caller's may already be cancelled. For a fresh
// ingestion every trace is removed; for a replacement run the previous
// record is put back and the index slice is rebuilt from the stored
// chunks, which still hold the previous content.
func (s *IngestService) rollback(documentID string, prev *types.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if prev != nil {
		if err := s.restoreIndexFromChunks(ctx, documentID); err != nil {
			log.Printf("rollback: failed to restore index for %s: %v", documentID, err)
		}
		if err := s.documents.UpdateDocument(ctx, prev); err != nil {
			log.Printf("rollback: failed to restore document %s: %v", documentID, err)
		}
		return
	}

	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		log.Printf("rollback: failed to clear index for %s: %v", documentID, err)
	}
	if err := s.chunks.DeleteChunks(ctx, documentID); err != nil {
		log.Printf("rollback: failed to delete chunks for %s: %v", documentID, err)
	}
	if err := s.documents.DeleteDocument(ctx, documentID); err != nil {
		log.Printf("rollback: failed to delete document %s: %v", documentID, err)
	}
}

// restoreIndexFromChunks re-embeds a document's stored chunks and swaps
// them back into the index.
func (s *IngestService) restoreIndexFromChunks(ctx context.Context, documentID string) error {
	chunks, err := s.chunks.GetChunks(ctx, documentID)
	if err != nil {
		return err
	}
	return s.indexChunks(ctx, documentID, chunks)
}

func (s *IngestService) lockDocument(documentID string) func() {
	s.locksMu.Lock()
	lock, ok := s.docLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.docLocks[documentID] = lock
	}
	s.locksMu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, name)
}
