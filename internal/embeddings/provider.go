// Package embeddings provides embedding generation via multiple providers.
//
// Both ingestion and query embedding must come from the same provider, or
// corpus and query vectors live in different spaces and similarity scores
// are meaningless. The pipeline holds a single Provider for both paths.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Provider is the provider type: "hash" (offline reference) or "tei".
	Provider string

	// Dimension is the vector dimension for the hash provider.
	Dimension int

	// BaseURL is the TEI endpoint URL (tei only).
	BaseURL string

	// Model is the embedding model name (tei only).
	Model string
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "hash", "":
		return NewHashProvider(cfg.Dimension)
	case "tei":
		return NewTEIProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
