package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	EmbeddingBatchSize  int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"32"`
	ChatModel           string        `envconfig:"CHAT_MODEL" default:"gpt-4o"`
	ChatMaxTokens       int           `envconfig:"CHAT_MAX_TOKENS" default:"800"`
	ChatTemperature     float32       `envconfig:"CHAT_TEMPERATURE" default:"0.5"`
	ChatTimeout         time.Duration `envconfig:"CHAT_TIMEOUT" default:"15s"`
	GuardrailTimeout    time.Duration `envconfig:"GUARDRAIL_TIMEOUT" default:"10s"`

	// Chunking
	ChunkMinTokens    int    `envconfig:"CHUNK_MIN_TOKENS" default:"200"`
	ChunkMaxTokens    int    `envconfig:"CHUNK_MAX_TOKENS" default:"600"`
	ChunkOverlap      int    `envconfig:"CHUNK_OVERLAP" default:"75"`
	ChunkSourceField  string `envconfig:"CHUNK_SOURCE_FIELD" default:"abstract"`
	PreserveSentences bool   `envconfig:"CHUNK_PRESERVE_SENTENCES" default:"true"`

	// Local vector index
	IndexType          string `envconfig:"INDEX_TYPE" default:"flat"`
	IndexPath          string `envconfig:"INDEX_PATH" default:"data/vector_index.bin"`
	IndexMetadataPath  string `envconfig:"INDEX_METADATA_PATH" default:"data/vector_metadata.jsonl"`
	HNSWM              int    `envconfig:"HNSW_M" default:"16"`
	HNSWEfConstruction int    `envconfig:"HNSW_EF_CONSTRUCTION" default:"200"`
	HNSWEfSearch       int    `envconfig:"HNSW_EF_SEARCH" default:"50"`

	// Remote vector store
	PineconeAPIKey    string `envconfig:"PINECONE_API_KEY"`
	PineconeIndexHost string `envconfig:"PINECONE_INDEX_HOST"`
	PineconeNamespace string `envconfig:"PINECONE_NAMESPACE" default:"__default__"`
	UpsertBatchSize   int    `envconfig:"UPSERT_BATCH_SIZE" default:"100"`

	// Index snapshots
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"helioscope-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("HELIOSCOPE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.ChunkMinTokens <= 0 || cfg.ChunkMaxTokens < cfg.ChunkMinTokens {
		return nil, fmt.Errorf("chunk token bounds invalid: min=%d max=%d", cfg.ChunkMinTokens, cfg.ChunkMaxTokens)
	}
	if cfg.ChunkOverlap >= cfg.ChunkMinTokens {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than min tokens %d", cfg.ChunkOverlap, cfg.ChunkMinTokens)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasPinecone() bool {
	return c.PineconeAPIKey != "" && c.PineconeIndexHost != ""
}
