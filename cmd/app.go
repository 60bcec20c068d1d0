package cmd

import (
	"context"
	"log"

	"github.com/bookbrain-ai/bookbrain-be/config"
	"github.com/bookbrain-ai/bookbrain-be/database"
	"github.com/bookbrain-ai/bookbrain-be/repository"
	"github.com/bookbrain-ai/bookbrain-be/service"
)

// app holds the wired service graph shared by the server and the CLI
// commands. Storage backends degrade gracefully: without a MongoDB URI
// the repositories are in-memory, without a Weaviate host the vector
// index is in-memory. Both in-memory modes lose data on exit and are
// meant for local runs.
type app struct {
	cfg        *config.Config
	documents  repository.DocumentRepo
	chunks     repository.ChunkRepo
	inclusions repository.InclusionRepo
	index      database.VectorIndex
	embedder   service.Embedder
	extractor  *service.ExtractService
	chunker    *service.ChunkService
	ingest     *service.IngestService
	retrieval  *service.RetrievalService
	assembler  *service.ContextAssembler
	chat       *service.ChatService
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	if cfg.MongoURI != "" {
		client, err := database.NewMongoClient(context.Background(), cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		a.documents = repository.NewDocumentRepo(db)
		a.chunks = repository.NewChunkRepo(db)
		a.inclusions = repository.NewInclusionRepo(db)
	} else {
		log.Println("MONGODB_URI not set, using in-memory storage")
		a.documents = repository.NewMemoryDocumentRepo()
		a.chunks = repository.NewMemoryChunkRepo()
		a.inclusions = repository.NewMemoryInclusionRepo()
	}

	a.embedder = service.NewOpenAIEmbedder(cfg.Embedding, cfg.OpenAIAPIKey)

	if cfg.Weaviate.Host != "" {
		index, err := database.NewWeaviateIndex(cfg.Weaviate, a.embedder.ModelID(), a.embedder.Dimension())
		if err != nil {
			return nil, err
		}
		a.index = index
	} else {
		log.Println("Weaviate host not set, using in-memory vector index")
		a.index = database.NewMemoryIndex(a.embedder.ModelID(), a.embedder.Dimension())
	}

	a.extractor = service.NewExtractService(cfg.Extraction, service.NewPopplerSource(), service.NewTesseractOCR(cfg.Extraction.OCRLanguages))
	a.chunker = service.NewChunkService(cfg.Chunking)
	a.ingest = service.NewIngestService(
		cfg.UploadDir,
		a.extractor,
		a.chunker,
		a.embedder,
		a.index,
		a.documents,
		a.chunks,
		a.inclusions,
	)
	a.retrieval = service.NewRetrievalService(
		a.embedder,
		a.index,
		a.documents,
		a.inclusions,
		cfg.Retrieval.TopK,
		cfg.Retrieval.Fanout,
		cfg.Retrieval.LexicalWeight,
	)
	a.assembler = service.NewContextAssembler(cfg.Retrieval.MaxContextChars)

	return a, nil
}

// buildChat attaches the chat model. Gemini is used when keys are
// configured, otherwise the OpenAI-compatible endpoint.
func (a *app) buildChat() error {
	var ai service.AIService
	if len(a.cfg.GeminiAPIKeys) > 0 {
		gemini, err := service.NewGeminiService(a.cfg.GeminiAPIKeys, a.cfg.Model)
		if err != nil {
			return err
		}
		gemini.RegisterKnowledgeSearch(a.retrieval, a.cfg.Retrieval.TopK)
		ai = gemini
	} else {
		openaiSvc := service.NewOpenAIService(a.cfg.AIEndpoint, a.cfg.OpenAIAPIKey, a.cfg.Model)
		openaiSvc.RegisterKnowledgeSearch(a.retrieval, a.cfg.Retrieval.TopK)
		ai = openaiSvc
	}
	a.chat = service.NewChatService(a.retrieval, a.assembler, ai, a.cfg.Retrieval.TopK)
	return nil
}
