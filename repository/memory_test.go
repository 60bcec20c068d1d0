package repository

import (
	"context"
	"testing"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDocumentRepo_CRUD(t *testing.T) {
	repo := NewMemoryDocumentRepo()
	ctx := context.Background()

	doc := &types.Document{ID: "doc1", Title: "Moby Dick", Status: types.DocStatusProcessing}
	require.NoError(t, repo.CreateDocument(ctx, doc))

	got, err := repo.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Moby Dick", got.Title)

	doc.Status = types.DocStatusCompleted
	require.NoError(t, repo.UpdateDocument(ctx, doc))
	got, err = repo.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusCompleted, got.Status)

	require.NoError(t, repo.DeleteDocument(ctx, "doc1"))
	_, err = repo.GetDocument(ctx, "doc1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDocumentRepo_UpdateMissing(t *testing.T) {
	repo := NewMemoryDocumentRepo()

	err := repo.UpdateDocument(context.Background(), &types.Document{ID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDocumentRepo_ListIsSorted(t *testing.T) {
	repo := NewMemoryDocumentRepo()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, repo.CreateDocument(ctx, &types.Document{ID: id}))
	}

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
	assert.Equal(t, "c", docs[2].ID)
}

func TestMemoryDocumentRepo_PagesSortedByIndex(t *testing.T) {
	repo := NewMemoryDocumentRepo()
	ctx := context.Background()

	require.NoError(t, repo.SavePages(ctx, "doc1", []types.Page{
		{DocumentID: "doc1", Index: 2, Text: "third"},
		{DocumentID: "doc1", Index: 0, Text: "first"},
		{DocumentID: "doc1", Index: 1, Text: "second"},
	}))

	pages, err := repo.GetPages(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "first", pages[0].Text)
	assert.Equal(t, "third", pages[2].Text)
}

func TestMemoryChunkRepo_ReplaceAndCount(t *testing.T) {
	repo := NewMemoryChunkRepo()
	ctx := context.Background()

	require.NoError(t, repo.ReplaceChunks(ctx, "doc1", []types.Chunk{
		{ID: "doc1:0000", DocumentID: "doc1", Seq: 0},
		{ID: "doc1:0001", DocumentID: "doc1", Seq: 1},
	}))
	require.NoError(t, repo.ReplaceChunks(ctx, "doc1", []types.Chunk{
		{ID: "doc1:0000", DocumentID: "doc1", Seq: 0},
	}))

	chunks, err := repo.GetChunks(ctx, "doc1")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	n, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.DeleteChunks(ctx, "doc1"))
	n, err = repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryInclusionRepo_DefaultExcluded(t *testing.T) {
	repo := NewMemoryInclusionRepo()
	ctx := context.Background()

	// No record means not included.
	included, err := repo.IsIncluded(ctx, "doc1")
	require.NoError(t, err)
	assert.False(t, included)

	require.NoError(t, repo.SetIncluded(ctx, "doc1", true))
	included, err = repo.IsIncluded(ctx, "doc1")
	require.NoError(t, err)
	assert.True(t, included)

	require.NoError(t, repo.SetIncluded(ctx, "doc1", false))
	included, err = repo.IsIncluded(ctx, "doc1")
	require.NoError(t, err)
	assert.False(t, included)
}

func TestMemoryInclusionRepo_ListIncluded(t *testing.T) {
	repo := NewMemoryInclusionRepo()
	ctx := context.Background()

	require.NoError(t, repo.SetIncluded(ctx, "doc1", true))
	require.NoError(t, repo.SetIncluded(ctx, "doc2", false))
	require.NoError(t, repo.SetIncluded(ctx, "doc3", true))

	included, err := repo.ListIncluded(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"doc1": true, "doc3": true}, included)

	require.NoError(t, repo.Delete(ctx, "doc1"))
	included, err = repo.ListIncluded(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"doc3": true}, included)
}
