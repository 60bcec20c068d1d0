package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bookbrain-ai/bookbrain-be/config"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const BATCH_SIZE = 200

var (
	CHUNK_CLASS        = "BookChunk"
	CHUNK_CLASS_OBJECT = &models.Class{
		Class: CHUNK_CLASS,
		Properties: []*models.Property{
			{Name: "chunkId", DataType: []string{"text"}},
			{Name: "documentId", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "seq", DataType: []string{"int"}},
			{Name: "startOffset", DataType: []string{"int"}},
			{Name: "endOffset", DataType: []string{"int"}},
			{Name: "pageStart", DataType: []string{"int"}},
			{Name: "pageEnd", DataType: []string{"int"}},
		},
		// Vectors are computed client-side by the embedding service so the
		// index never mixes models without noticing.
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
	}
)

// WeaviateIndex implements VectorIndex on a Weaviate instance.
type WeaviateIndex struct {
	client    *weaviate.Client
	modelID   string
	dimension int
}

func NewWeaviateIndex(cfg config.WeaviateStoreConfig, modelID string, dimension int) (*WeaviateIndex, error) {
	var scheme string
	if strings.Contains(cfg.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(cfg.Host, scheme+"://")
	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{
			Value: cfg.APIKey,
		}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %v", err)
	}

	schema, err := client.Schema().Getter().Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %v", err)
	}

	hasChunkClass := false
	for _, class := range schema.Classes {
		if class.Class == CHUNK_CLASS {
			hasChunkClass = true
			break
		}
	}
	if !hasChunkClass {
		err = client.Schema().ClassCreator().WithClass(CHUNK_CLASS_OBJECT).Do(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to create %s class: %v", CHUNK_CLASS, err)
		}
	}
	return &WeaviateIndex{
		client:    client,
		modelID:   modelID,
		dimension: dimension,
	}, nil
}

func (s *WeaviateIndex) ModelID() string { return s.modelID }

func (s *WeaviateIndex) Dimension() int { return s.dimension }

func (s *WeaviateIndex) Upsert(ctx context.Context, modelID string, entries []ChunkEntry) error {
	if modelID != s.modelID {
		return fmt.Errorf("%w: index built with %q, got %q", types.ErrEmbeddingModelMismatch, s.modelID, modelID)
	}
	total := len(entries)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			e := entries[j]
			if len(e.Vector) != s.dimension {
				return fmt.Errorf("%w: expected dimension %d, got %d", types.ErrEmbeddingModelMismatch, s.dimension, len(e.Vector))
			}
			properties := map[string]interface{}{
				"chunkId":     e.Chunk.ID,
				"documentId":  e.Chunk.DocumentID,
				"title":       "",
				"content":     e.Chunk.Text,
				"seq":         e.Chunk.Seq,
				"startOffset": e.Chunk.Start,
				"endOffset":   e.Chunk.End,
				"pageStart":   e.Chunk.PageStart,
				"pageEnd":     e.Chunk.PageEnd,
			}
			batcher = batcher.WithObjects(&models.Object{
				Class: CHUNK_CLASS,
				// Deterministic object id makes re-upserting a chunk replace
				// it instead of duplicating it.
				ID:         objectID(e.Chunk.ID),
				Properties: properties,
				Vector:     e.Vector,
			})
		}

		if _, err := batcher.Do(ctx); err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %v", i, end, err)
		}
	}
	return nil
}

func (s *WeaviateIndex) DeleteDocument(ctx context.Context, documentID string) error {
	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueString(documentID)
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(CHUNK_CLASS).
		WithWhere(where).
		Do(ctx)
	return err
}

func (s *WeaviateIndex) Query(ctx context.Context, modelID string, vector []float32, k int, allowed map[string]bool) ([]ChunkMatch, error) {
	if modelID != s.modelID {
		return nil, fmt.Errorf("%w: index built with %q, got %q", types.ErrEmbeddingModelMismatch, s.modelID, modelID)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: expected dimension %d, got %d", types.ErrEmbeddingModelMismatch, s.dimension, len(vector))
	}
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "documentId"},
		{Name: "content"},
		{Name: "seq"},
		{Name: "startOffset"},
		{Name: "endOffset"},
		{Name: "pageStart"},
		{Name: "pageEnd"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	getBuilder := s.client.GraphQL().Get().
		WithClassName(CHUNK_CLASS).
		WithFields(fields...).
		WithNearVector(nearVector)
	if k > 0 {
		getBuilder = getBuilder.WithLimit(k)
	}
	if where := buildInclusionFilter(allowed); where != nil {
		getBuilder = getBuilder.WithWhere(where)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, err
	}
	if result.Errors != nil {
		return nil, fmt.Errorf("query failed: %v", result.Errors[0].Message)
	}

	matches, err := parseQueryMatches(result.Data)
	if err != nil {
		return nil, err
	}

	// Weaviate orders by distance but leaves ties unspecified; re-sort with
	// chunk id tie break so results are reproducible.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})

	return matches, nil
}

// parseQueryMatches decodes the untyped GraphQL payload into chunk
// matches. A payload that no longer carries the shape this index writes
// is reported as index corruption.
func parseQueryMatches(data map[string]models.JSONObject) ([]ChunkMatch, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: query result has no Get payload", types.ErrIndexCorruption)
	}
	items, ok := get[CHUNK_CLASS].([]interface{})
	if !ok {
		return nil, nil
	}

	var matches []ChunkMatch
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: unexpected object shape in query result", types.ErrIndexCorruption)
		}
		chunkID, ok := obj["chunkId"].(string)
		if !ok || chunkID == "" {
			return nil, fmt.Errorf("%w: stored object has no chunk id", types.ErrIndexCorruption)
		}
		documentID, ok := obj["documentId"].(string)
		if !ok || documentID == "" {
			return nil, fmt.Errorf("%w: chunk %s has no document id", types.ErrIndexCorruption, chunkID)
		}
		content, _ := obj["content"].(string)
		match := ChunkMatch{
			Chunk: types.Chunk{
				ID:         chunkID,
				DocumentID: documentID,
				Text:       content,
				Seq:        asInt(obj["seq"]),
				Start:      asInt(obj["startOffset"]),
				End:        asInt(obj["endOffset"]),
				PageStart:  asInt(obj["pageStart"]),
				PageEnd:    asInt(obj["pageEnd"]),
			},
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				// Cosine distance is 1 - similarity.
				match.Score = 1 - distance
			}
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (s *WeaviateIndex) Count(ctx context.Context) (int, error) {
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(CHUNK_CLASS).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if result.Errors != nil {
		return 0, fmt.Errorf("aggregate failed: %v", result.Errors[0].Message)
	}
	agg, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	data, ok := agg[CHUNK_CLASS].([]interface{})
	if !ok || len(data) == 0 {
		return 0, nil
	}
	row, ok := data[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	if meta, ok := row["meta"].(map[string]interface{}); ok {
		return asInt(meta["count"]), nil
	}
	return 0, nil
}

func (s *WeaviateIndex) Reset(ctx context.Context) error {
	err := s.client.Schema().ClassDeleter().WithClassName(CHUNK_CLASS).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s class: %v", CHUNK_CLASS, err)
	}
	err = s.client.Schema().ClassCreator().WithClass(CHUNK_CLASS_OBJECT).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create %s class: %v", CHUNK_CLASS, err)
	}
	return nil
}

func buildInclusionFilter(allowed map[string]bool) *filters.WhereBuilder {
	if allowed == nil {
		return nil
	}
	ids := make([]string, 0, len(allowed))
	for id, ok := range allowed {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.ContainsAny).
		WithValueString(ids...)
}

func objectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

var _ VectorIndex = (*WeaviateIndex)(nil)
