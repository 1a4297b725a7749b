package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures the vector index backend.
type Config struct {
	// Provider is "memory", "chromem" or "qdrant".
	Provider string

	// Collection is the collection name used for chunk vectors.
	Collection string

	// Dimension is the vector dimension; must match the embedding provider.
	Dimension int

	// FallbackEnabled wraps the backend with a bounded in-memory fallback.
	FallbackEnabled bool

	// FallbackMaxPoints bounds the fallback working set.
	FallbackMaxPoints int

	Qdrant  QdrantConfig
	Chromem ChromemConfig
}

// NewIndex creates an Index for the configured provider.
func NewIndex(config Config, logger *zap.Logger) (Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	var (
		index Index
		err   error
	)
	switch config.Provider {
	case "memory":
		index = NewMemoryIndex(config.Dimension, 0)
	case "chromem":
		cfg := config.Chromem
		cfg.Collection = config.Collection
		cfg.Dimension = config.Dimension
		index, err = NewChromemIndex(cfg)
	case "qdrant":
		cfg := config.Qdrant
		cfg.Collection = config.Collection
		cfg.Dimension = config.Dimension
		index, err = NewQdrantIndex(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown vectorstore provider %q", ErrInvalidConfig, config.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("vector index initialized",
		zap.String("provider", config.Provider),
		zap.String("collection", config.Collection),
		zap.Int("dimension", config.Dimension))

	if config.FallbackEnabled && config.Provider != "memory" {
		return NewFallbackIndex(index, config.FallbackMaxPoints, logger), nil
	}
	return index, nil
}
