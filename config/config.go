package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"port"`
	UploadDir     string   `mapstructure:"upload_dir"`
	AIEndpoint    string   `mapstructure:"ai_endpoint"`
	Model         string   `mapstructure:"model"`
	OpenAIAPIKey  string   `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKeys []string `mapstructure:"gemini_api_keys"`
	MongoURI      string   `mapstructure:"MONGODB_URI"`
	MongoDatabase string   `mapstructure:"mongo_database"`

	Extraction ExtractionConfig    `mapstructure:"extraction"`
	Chunking   ChunkingConfig      `mapstructure:"chunking"`
	Embedding  EmbeddingConfig     `mapstructure:"embedding"`
	Retrieval  RetrievalConfig     `mapstructure:"retrieval"`
	Weaviate   WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
}

// ExtractionConfig holds the thresholds of the direct-vs-OCR decision.
// The defaults follow the source material: a page whose embedded text layer
// yields fewer than 100 characters, or mostly non-alphabetic noise, is
// treated as scanned and sent to OCR.
type ExtractionConfig struct {
	MinDirectChars   int     `mapstructure:"min_direct_chars"`
	MinAlphaRatio    float64 `mapstructure:"min_alpha_ratio"`
	ReviewConfidence float64 `mapstructure:"review_confidence"`
	OCRMaxAttempts   int     `mapstructure:"ocr_max_attempts"`
	OCRLanguages     string  `mapstructure:"ocr_languages"`
	Workers          int     `mapstructure:"workers"`
}

type ChunkingConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
	Overlap   int `mapstructure:"overlap"`
	// Tolerance is how far back from the target cut a sentence or word
	// boundary may be before we give up and hard-cut.
	Tolerance int `mapstructure:"tolerance"`
}

type EmbeddingConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
}

type RetrievalConfig struct {
	TopK            int     `mapstructure:"top_k"`
	Fanout          int     `mapstructure:"fanout"`
	LexicalWeight   float64 `mapstructure:"lexical_weight"`
	MaxContextChars int     `mapstructure:"max_context_chars"`
}

type WeaviateStoreConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"WEAVIATE_APIKEY"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("WEAVIATE_APIKEY")
	v.BindEnv("MONGODB_URI")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("mongo_database", "bookbrain")

	v.SetDefault("extraction.min_direct_chars", 100)
	v.SetDefault("extraction.min_alpha_ratio", 0.5)
	v.SetDefault("extraction.review_confidence", 0.7)
	v.SetDefault("extraction.ocr_max_attempts", 3)
	v.SetDefault("extraction.ocr_languages", "eng")
	v.SetDefault("extraction.workers", runtime.NumCPU())

	v.SetDefault("chunking.chunk_size", 1000)
	v.SetDefault("chunking.overlap", 100)
	v.SetDefault("chunking.tolerance", 200)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.batch_size", 64)

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.fanout", 15)
	v.SetDefault("retrieval.lexical_weight", 0.2)
	v.SetDefault("retrieval.max_context_chars", 8000)
}
