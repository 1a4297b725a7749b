// Package config provides configuration loading for lexrag.
//
// Configuration is loaded from a YAML file and overridden with environment
// variables. Precedence (highest to lowest):
//
//  1. Environment variables (LEXRAG_SERVER_ADDR, LEXRAG_QDRANT_HOST, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"fmt"

	"github.com/lexgrove/lexrag/internal/logging"
)

// Config is the root configuration for the lexrag daemon.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     logging.Config    `koanf:"logging"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	LLM         LLMConfig         `koanf:"llm"`
	Docstore    DocstoreConfig    `koanf:"docstore"`
	Blobstore   BlobstoreConfig   `koanf:"blobstore"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8420".
	Addr string `koanf:"addr"`

	// MaxUploadBytes caps accepted document upload size.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// MaxQuestionChars caps accepted question length.
	MaxQuestionChars int `koanf:"max_question_chars"`

	// QueryTimeout bounds a single query request, generation included.
	QueryTimeout Duration `koanf:"query_timeout"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "hash" (offline reference) or "tei" (HTTP service).
	Provider string `koanf:"provider"`

	// Dimension is the embedding dimension for the hash provider.
	Dimension int `koanf:"dimension"`

	// BaseURL is the TEI endpoint (tei provider only).
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name (tei provider only).
	Model string `koanf:"model"`
}

// VectorStoreConfig selects the vector index backend.
type VectorStoreConfig struct {
	// Provider is "memory", "chromem" or "qdrant".
	Provider string `koanf:"provider"`

	// Collection is the collection name used for chunk vectors.
	Collection string `koanf:"collection"`

	// FallbackEnabled engages an in-memory brute-force index when the
	// primary backend is unreachable.
	FallbackEnabled bool `koanf:"fallback_enabled"`

	// FallbackMaxPoints bounds the fallback working set.
	FallbackMaxPoints int `koanf:"fallback_max_points"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// ChromemConfig holds embedded chromem-go settings.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
}

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	// Provider forces a backend: "claude" or "gemini". Empty selects by
	// credential availability (claude preferred).
	Provider string `koanf:"provider"`

	// Model overrides the provider's default model.
	Model string `koanf:"model"`

	AnthropicAPIKey Secret `koanf:"anthropic_api_key"`
	GeminiAPIKey    Secret `koanf:"gemini_api_key"`

	// MaxTokens caps generated answer length.
	MaxTokens int `koanf:"max_tokens"`

	// Temperature for generation; legal answers want it low.
	Temperature float64 `koanf:"temperature"`

	Timeout Duration `koanf:"timeout"`
}

// DocstoreConfig selects the metadata store backend.
type DocstoreConfig struct {
	// Provider is "memory" or "badger".
	Provider string `koanf:"provider"`

	// Path is the badger database directory (badger provider only).
	Path string `koanf:"path"`
}

// BlobstoreConfig holds raw document storage settings.
type BlobstoreConfig struct {
	// Path is the root directory for stored document bytes.
	Path string `koanf:"path"`
}

// PipelineConfig holds retrieval pipeline tunables.
type PipelineConfig struct {
	// MaxChunkTokens is the chunk size cap (token-estimated).
	MaxChunkTokens int `koanf:"max_chunk_tokens"`

	// OverlapTokens is the trailing overlap carried between adjacent chunks.
	OverlapTokens int `koanf:"overlap_tokens"`

	// TopK is the default number of chunks retrieved per query.
	TopK int `koanf:"top_k"`

	// SummaryMaxChars bounds the text sent to the summary generation call.
	SummaryMaxChars int `koanf:"summary_max_chars"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8420"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 25 * 1024 * 1024
	}
	if c.Server.MaxQuestionChars == 0 {
		c.Server.MaxQuestionChars = 2000
	}
	if c.Server.QueryTimeout == 0 {
		c.Server.QueryTimeout = Duration(60 * 1e9)
	}
	c.Logging.ApplyDefaults()
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "hash"
	}
	if c.Embeddings.Dimension == 0 {
		c.Embeddings.Dimension = 384
	}
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "chromem"
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "lexrag_chunks"
	}
	if c.VectorStore.FallbackMaxPoints == 0 {
		c.VectorStore.FallbackMaxPoints = 10000
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
	if c.Chromem.Path == "" {
		c.Chromem.Path = "~/.local/share/lexrag/vectorstore"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = Duration(60 * 1e9)
	}
	if c.Docstore.Provider == "" {
		c.Docstore.Provider = "badger"
	}
	if c.Docstore.Path == "" {
		c.Docstore.Path = "~/.local/share/lexrag/docstore"
	}
	if c.Blobstore.Path == "" {
		c.Blobstore.Path = "~/.local/share/lexrag/blobs"
	}
	if c.Pipeline.MaxChunkTokens == 0 {
		c.Pipeline.MaxChunkTokens = 500
	}
	if c.Pipeline.OverlapTokens == 0 {
		c.Pipeline.OverlapTokens = 50
	}
	if c.Pipeline.TopK == 0 {
		c.Pipeline.TopK = 5
	}
	if c.Pipeline.SummaryMaxChars == 0 {
		c.Pipeline.SummaryMaxChars = 8000
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	switch c.Embeddings.Provider {
	case "hash", "tei":
	default:
		return fmt.Errorf("invalid embeddings provider %q (supported: hash, tei)", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "tei" && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings.base_url required for tei provider")
	}
	switch c.VectorStore.Provider {
	case "memory", "chromem", "qdrant":
	default:
		return fmt.Errorf("invalid vectorstore provider %q (supported: memory, chromem, qdrant)", c.VectorStore.Provider)
	}
	if c.VectorStore.Provider == "qdrant" {
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port)
		}
	}
	switch c.LLM.Provider {
	case "", "claude", "gemini":
	default:
		return fmt.Errorf("invalid llm provider %q (supported: claude, gemini)", c.LLM.Provider)
	}
	switch c.Docstore.Provider {
	case "memory", "badger":
	default:
		return fmt.Errorf("invalid docstore provider %q (supported: memory, badger)", c.Docstore.Provider)
	}
	if c.Pipeline.OverlapTokens >= c.Pipeline.MaxChunkTokens {
		return fmt.Errorf("pipeline overlap_tokens (%d) must be smaller than max_chunk_tokens (%d)",
			c.Pipeline.OverlapTokens, c.Pipeline.MaxChunkTokens)
	}
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("pipeline top_k must be positive")
	}
	return nil
}
