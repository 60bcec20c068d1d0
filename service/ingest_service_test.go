package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bookbrain-ai/bookbrain-be/config"
	"github.com/bookbrain-ai/bookbrain-be/database"
	"github.com/bookbrain-ai/bookbrain-be/repository"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestFixture struct {
	embedder   fakeEmbedder
	index      *database.MemoryIndex
	documents  *repository.MemoryDocumentRepo
	chunks     *repository.MemoryChunkRepo
	inclusions *repository.MemoryInclusionRepo
	extractor  *ExtractService
	chunker    *ChunkService
	svc        *IngestService
}

func newIngestFixture(t *testing.T, source PageSource, ocr OCREngine) *ingestFixture {
	f := &ingestFixture{
		documents:  repository.NewMemoryDocumentRepo(),
		chunks:     repository.NewMemoryChunkRepo(),
		inclusions: repository.NewMemoryInclusionRepo(),
	}
	f.index = database.NewMemoryIndex(f.embedder.ModelID(), f.embedder.Dimension())
	f.extractor = NewExtractService(testExtractionConfig(), source, ocr)
	f.chunker = NewChunkService(config.ChunkingConfig{ChunkSize: 200, Overlap: 20, Tolerance: 50})
	f.svc = NewIngestService(
		t.TempDir(),
		f.extractor,
		f.chunker,
		f.embedder,
		f.index,
		f.documents,
		f.chunks,
		f.inclusions,
	)
	return f
}

// failingDocumentRepo rejects page writes, standing in for an unreachable
// pages collection.
type failingDocumentRepo struct {
	repository.DocumentRepo
}

func (r *failingDocumentRepo) SavePages(ctx context.Context, documentID string, pages []types.Page) error {
	return errors.New("pages collection unavailable")
}

func TestIngestPath_FullPipeline(t *testing.T) {
	src := &stubSource{pages: []string{goodPageText(), goodPageText()}}
	f := newIngestFixture(t, src, &stubOCR{})
	ctx := context.Background()

	doc, err := f.svc.IngestPath(ctx, types.IngestRequest{Title: "Moby Dick", Author: "Melville"}, "book.pdf", nil)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, types.DocStatusCompleted, doc.Status)
	assert.Equal(t, 2, doc.TotalPages)

	stored, err := f.documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Moby Dick", stored.Title)

	pages, err := f.documents.GetPages(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	chunks, err := f.chunks.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	count, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), count)

	// New documents are excluded from retrieval until opted in.
	included, err := f.inclusions.IsIncluded(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, included)
}

func TestIngestPath_FailedExtractionKeepsDocument(t *testing.T) {
	src := &stubSource{pages: []string{""}}
	f := newIngestFixture(t, src, &stubOCR{failures: 1000})
	ctx := context.Background()

	doc, err := f.svc.IngestPath(ctx, types.IngestRequest{Title: "Blank"}, "book.pdf", nil)
	require.ErrorIs(t, err, types.ErrExtractionFailed)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocStatusFailed, doc.Status)

	// The record survives for manual review but nothing is indexed.
	_, err = f.documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	count, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIngestPath_FailedExtractionSaveErrorSurfaces(t *testing.T) {
	src := &stubSource{pages: []string{""}}
	f := newIngestFixture(t, src, &stubOCR{failures: 1000})
	svc := NewIngestService(
		t.TempDir(),
		f.extractor,
		f.chunker,
		f.embedder,
		f.index,
		&failingDocumentRepo{DocumentRepo: f.documents},
		f.chunks,
		f.inclusions,
	)

	doc, err := svc.IngestPath(context.Background(), types.IngestRequest{Title: "Blank"}, "book.pdf", nil)
	require.NotNil(t, doc)
	// The extraction failure is still the primary error, but losing the
	// review record must not pass silently.
	assert.ErrorIs(t, err, types.ErrExtractionFailed)
	assert.ErrorContains(t, err, "pages collection unavailable")
}

func TestIngestPath_ReingestReplacesChunks(t *testing.T) {
	src := &stubSource{pages: []string{goodPageText()}}
	f := newIngestFixture(t, src, &stubOCR{})
	ctx := context.Background()

	first, err := f.svc.IngestPath(ctx, types.IngestRequest{Title: "Book"}, "book.pdf", nil)
	require.NoError(t, err)
	firstCount, _ := f.index.Count(ctx)

	// The same title ingested again is a new document; the index grows by
	// its own chunk set only.
	second, err := f.svc.IngestPath(ctx, types.IngestRequest{Title: "Book"}, "book.pdf", nil)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	total, _ := f.index.Count(ctx)
	assert.Equal(t, 2*firstCount, total)
}

func TestIngestPath_ReingestSameDocumentID(t *testing.T) {
	src := &stubSource{pages: []string{goodPageText()}}
	f := newIngestFixture(t, src, &stubOCR{})
	ctx := context.Background()

	first, err := f.svc.IngestPath(ctx, types.IngestRequest{Title: "Book"}, "book.pdf", nil)
	require.NoError(t, err)
	firstCount, _ := f.index.Count(ctx)

	// Targeting the existing id replaces the document in place.
	second, err := f.svc.IngestPath(ctx, types.IngestRequest{
		DocumentID: first.ID,
		Title:      "Book, Second Edition",
	}, "book.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	docs, err := f.documents.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Book, Second Edition", docs[0].Title)

	total, _ := f.index.Count(ctx)
	assert.Equal(t, firstCount, total)
}

func TestDeleteDocument_Cascades(t *testing.T) {
	src := &stubSource{pages: []string{goodPageText()}}
	f := newIngestFixture(t, src, &stubOCR{})
	ctx := context.Background()

	doc, err := f.svc.IngestPath(ctx, types.IngestRequest{Title: "Book"}, "book.pdf", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetIncluded(ctx, doc.ID, true))

	require.NoError(t, f.svc.DeleteDocument(ctx, doc.ID))

	_, err = f.documents.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	chunks, err := f.chunks.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	count, _ := f.index.Count(ctx)
	assert.Equal(t, 0, count)
	included, err := f.inclusions.IsIncluded(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, included)
}

func TestSetIncluded_UnknownDocument(t *testing.T) {
	f := newIngestFixture(t, &stubSource{}, &stubOCR{})

	err := f.svc.SetIncluded(context.Background(), "missing", true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRebuildIndex_RestoresFromChunkStorage(t *testing.T) {
	src := &stubSource{pages: []string{goodPageText()}}
	f := newIngestFixture(t, src, &stubOCR{})
	ctx := context.Background()

	doc, err := f.svc.IngestPath(ctx, types.IngestRequest{Title: "Book"}, "book.pdf", nil)
	require.NoError(t, err)
	chunks, err := f.chunks.GetChunks(ctx, doc.ID)
	require.NoError(t, err)

	// Simulate index loss.
	require.NoError(t, f.index.Reset(ctx))
	count, _ := f.index.Count(ctx)
	require.Equal(t, 0, count)

	require.NoError(t, f.svc.RebuildIndex(ctx))
	count, _ = f.index.Count(ctx)
	assert.Equal(t, len(chunks), count)
}

func TestStats(t *testing.T) {
	src := &stubSource{pages: []string{goodPageText()}}
	f := newIngestFixture(t, src, &stubOCR{})
	ctx := context.Background()

	doc, err := f.svc.IngestPath(ctx, types.IngestRequest{Title: "Book"}, "book.pdf", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetIncluded(ctx, doc.ID, true))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.IncludedCount)
	assert.NotZero(t, stats.ChunkCount)
	assert.Equal(t, f.embedder.ModelID(), stats.EmbeddingModel)
	assert.Equal(t, f.embedder.Dimension(), stats.Dimension)
}
