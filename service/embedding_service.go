package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookbrain-ai/bookbrain-be/config"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/sashabaranov/go-openai"
)

// Embedder maps text to fixed-length vectors. Implementations are pure
// functions of the text and the model identifier; the index uses ModelID
// and Dimension to refuse vectors from an incompatible model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelID() string
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
}

func NewOpenAIEmbedder(cfg config.EmbeddingConfig, apiKey string) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
	}
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

func (e *OpenAIEmbedder) ModelID() string { return e.model }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[i:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		if len(resp.Data) != end-i {
			return nil, errors.New("embedding response size mismatch")
		}
		for _, d := range resp.Data {
			if len(d.Embedding) != e.dimension {
				return nil, fmt.Errorf("%w: model %s returned dimension %d, configured %d",
					types.ErrEmbeddingModelMismatch, e.model, len(d.Embedding), e.dimension)
			}
			vectors = append(vectors, d.Embedding)
		}
	}
	return vectors, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
