package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bookbrain-ai/bookbrain-be/database"
	"github.com/bookbrain-ai/bookbrain-be/repository"
	"github.com/bookbrain-ai/bookbrain-be/types"
)

// RetrievalService answers similarity queries against the included slice
// of the knowledge base. Vector scores are blended with a lexical overlap
// term and near-duplicate passages from the same document are collapsed.
type RetrievalService struct {
	embedder      Embedder
	index         database.VectorIndex
	documents     repository.DocumentRepo
	inclusions    repository.InclusionRepo
	topK          int
	fanout        int
	lexicalWeight float64
}

func NewRetrievalService(
	embedder Embedder,
	index database.VectorIndex,
	documents repository.DocumentRepo,
	inclusions repository.InclusionRepo,
	topK, fanout int,
	lexicalWeight float64,
) *RetrievalService {
	if topK <= 0 {
		topK = 5
	}
	if fanout < topK {
		fanout = topK * 3
	}
	if lexicalWeight < 0 || lexicalWeight > 1 {
		lexicalWeight = 0.2
	}
	return &RetrievalService{
		embedder:      embedder,
		index:         index,
		documents:     documents,
		inclusions:    inclusions,
		topK:          topK,
		fanout:        fanout,
		lexicalWeight: lexicalWeight,
	}
}

// Retrieve returns up to k passages for a query, restricted to included
// documents. Returns ErrNoKnowledgeBase when nothing is included so the
// caller can fall back to an ungrounded answer instead of hallucinating
// citations.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) ([]types.Passage, error) {
	if k <= 0 {
		k = s.topK
	}

	allowed, err := s.inclusions.ListIncluded(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list included documents: %w", err)
	}
	if len(allowed) == 0 {
		return nil, types.ErrNoKnowledgeBase
	}

	if s.embedder.ModelID() != s.index.ModelID() {
		return nil, fmt.Errorf("%w: embedder %q vs index %q",
			types.ErrEmbeddingModelMismatch, s.embedder.ModelID(), s.index.ModelID())
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, s.embedder.ModelID(), vector, s.fanout, allowed)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	if len(matches) == 0 {
		return []types.Passage{}, nil
	}

	queryTerms := tokenize(query)
	passages := make([]types.Passage, 0, len(matches))
	titles := make(map[string]string)
	for _, m := range matches {
		title, ok := titles[m.Chunk.DocumentID]
		if !ok {
			doc, err := s.documents.GetDocument(ctx, m.Chunk.DocumentID)
			if err == nil {
				title = doc.Title
			}
			titles[m.Chunk.DocumentID] = title
		}
		score := (1-s.lexicalWeight)*m.Score + s.lexicalWeight*lexicalOverlap(queryTerms, m.Chunk.Text)
		passages = append(passages, types.Passage{
			ChunkID:    m.Chunk.ID,
			DocumentID: m.Chunk.DocumentID,
			Title:      title,
			PageStart:  m.Chunk.PageStart,
			PageEnd:    m.Chunk.PageEnd,
			Text:       m.Chunk.Text,
			Score:      score,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].ChunkID < passages[j].ChunkID
	})

	passages = dedupePassages(passages)
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

// dedupePassages drops a passage when a higher-ranked one from the same
// document covers an overlapping page range. Adjacent chunks carry
// character overlap by construction, so this mostly removes near-twins.
func dedupePassages(passages []types.Passage) []types.Passage {
	kept := make([]types.Passage, 0, len(passages))
	for _, p := range passages {
		dup := false
		for _, q := range kept {
			if q.DocumentID == p.DocumentID && pagesOverlap(p, q) && textOverlaps(p.Text, q.Text) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, p)
		}
	}
	return kept
}

func pagesOverlap(a, b types.Passage) bool {
	return a.PageStart <= b.PageEnd && b.PageStart <= a.PageEnd
}

// textOverlaps reports whether one passage's text is substantially
// contained in the other, as produced by the chunker's overlap window.
func textOverlaps(a, b string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	window := len(shorter) / 2
	if window == 0 {
		window = len(shorter)
	}
	return strings.Contains(longer, shorter[:window]) || strings.Contains(longer, shorter[len(shorter)-window:])
}

func tokenize(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if len(word) > 2 {
			terms[word] = true
		}
	}
	return terms
}

// lexicalOverlap is the fraction of query terms present in the text.
func lexicalOverlap(queryTerms map[string]bool, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	textTerms := tokenize(text)
	hits := 0
	for term := range queryTerms {
		if textTerms[term] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}
