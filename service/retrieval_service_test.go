package service

import (
	"context"
	"strings"
	"testing"

	"github.com/bookbrain-ai/bookbrain-be/database"
	"github.com/bookbrain-ai/bookbrain-be/repository"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps text to term counts over a tiny fixed vocabulary,
// so similarity in tests is controlled by word choice.
type fakeEmbedder struct{}

var fakeVocab = []string{"whale", "harpoon", "garden", "rose"}

func (fakeEmbedder) ModelID() string { return "fake-embed" }

func (fakeEmbedder) Dimension() int { return len(fakeVocab) + 1 }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.Dimension())
	lower := strings.ToLower(text)
	for i, term := range fakeVocab {
		vec[i] = float32(strings.Count(lower, term))
	}
	vec[len(fakeVocab)] = 0.1 // keeps every vector nonzero
	return vec, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

type retrievalFixture struct {
	embedder   fakeEmbedder
	index      *database.MemoryIndex
	documents  *repository.MemoryDocumentRepo
	inclusions *repository.MemoryInclusionRepo
	svc        *RetrievalService
}

func newRetrievalFixture(t *testing.T) *retrievalFixture {
	f := &retrievalFixture{
		documents:  repository.NewMemoryDocumentRepo(),
		inclusions: repository.NewMemoryInclusionRepo(),
	}
	f.index = database.NewMemoryIndex(f.embedder.ModelID(), f.embedder.Dimension())
	f.svc = NewRetrievalService(f.embedder, f.index, f.documents, f.inclusions, 5, 15, 0.2)
	return f
}

func (f *retrievalFixture) addDocument(t *testing.T, docID, title string, chunkTexts ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.documents.CreateDocument(ctx, &types.Document{ID: docID, Title: title}))

	entries := make([]database.ChunkEntry, len(chunkTexts))
	for i, text := range chunkTexts {
		vec, err := f.embedder.Embed(ctx, text)
		require.NoError(t, err)
		entries[i] = database.ChunkEntry{
			Chunk: types.Chunk{
				ID:         docID + ":" + string(rune('0'+i)),
				DocumentID: docID,
				Seq:        i,
				PageStart:  i,
				PageEnd:    i,
				Text:       text,
			},
			Vector: vec,
		}
	}
	require.NoError(t, f.index.Upsert(ctx, f.embedder.ModelID(), entries))
}

func TestRetrieve_NoKnowledgeBase(t *testing.T) {
	f := newRetrievalFixture(t)
	f.addDocument(t, "doc1", "Moby Dick", "the whale surfaced")

	_, err := f.svc.Retrieve(context.Background(), "whale", 5)
	assert.ErrorIs(t, err, types.ErrNoKnowledgeBase)
}

func TestRetrieve_InclusionFilter(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()
	f.addDocument(t, "doc1", "Moby Dick", "the whale took the harpoon")
	f.addDocument(t, "doc2", "Secret Garden", "the whale statue in the garden")

	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc1", true))
	passages, err := f.svc.Retrieve(ctx, "whale", 5)
	require.NoError(t, err)
	for _, p := range passages {
		assert.Equal(t, "doc1", p.DocumentID)
	}

	// Toggling the second document in makes it visible on the next query.
	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc2", true))
	passages, err = f.svc.Retrieve(ctx, "garden", 5)
	require.NoError(t, err)
	docs := make(map[string]bool)
	for _, p := range passages {
		docs[p.DocumentID] = true
	}
	assert.True(t, docs["doc2"])
}

func TestRetrieve_RanksRelevantFirst(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()
	f.addDocument(t, "doc1", "Moby Dick",
		"the whale breached and the whale dove",
		"a rose in the garden",
	)
	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc1", true))

	passages, err := f.svc.Retrieve(ctx, "whale", 5)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Contains(t, passages[0].Text, "whale")
	assert.Equal(t, "Moby Dick", passages[0].Title)
}

func TestRetrieve_DeduplicatesOverlappingPassages(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()

	// Two chunks from the same document share page range and text, as the
	// chunker's overlap window produces.
	require.NoError(t, f.documents.CreateDocument(ctx, &types.Document{ID: "doc1", Title: "Moby Dick"}))
	text := "the whale took the harpoon down into the deep"
	vec, err := f.embedder.Embed(ctx, text)
	require.NoError(t, err)
	entries := []database.ChunkEntry{
		{Chunk: types.Chunk{ID: "doc1:0000", DocumentID: "doc1", PageStart: 3, PageEnd: 4, Text: text}, Vector: vec},
		{Chunk: types.Chunk{ID: "doc1:0001", DocumentID: "doc1", PageStart: 4, PageEnd: 5, Text: text}, Vector: vec},
	}
	require.NoError(t, f.index.Upsert(ctx, f.embedder.ModelID(), entries))
	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc1", true))

	passages, err := f.svc.Retrieve(ctx, "whale harpoon", 5)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "doc1:0000", passages[0].ChunkID)
}

func TestRetrieve_KeepsDistinctDocuments(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()
	text := "the whale took the harpoon"
	f.addDocument(t, "doc1", "Moby Dick", text)
	f.addDocument(t, "doc2", "Whales Monthly", text)
	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc1", true))
	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc2", true))

	passages, err := f.svc.Retrieve(ctx, "whale", 5)
	require.NoError(t, err)
	assert.Len(t, passages, 2)
}

func TestRetrieve_RespectsLimit(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()
	f.addDocument(t, "doc1", "Moby Dick",
		"whale one", "whale two harpoon", "whale three garden", "whale four rose",
	)
	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc1", true))

	passages, err := f.svc.Retrieve(ctx, "whale", 2)
	require.NoError(t, err)
	assert.Len(t, passages, 2)
}

func TestLexicalOverlap(t *testing.T) {
	terms := tokenize("whale harpoon")
	assert.Equal(t, 1.0, lexicalOverlap(terms, "whale harpoon everywhere"))
	assert.Equal(t, 0.5, lexicalOverlap(terms, "only the whale"))
	assert.Equal(t, 0.0, lexicalOverlap(terms, "nothing relevant"))
}
