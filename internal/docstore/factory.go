package docstore

import (
	"fmt"

	"go.uber.org/zap"
)

// NewStore creates a Store for the configured provider.
func NewStore(provider, path string, logger *zap.Logger) (Store, error) {
	switch provider {
	case "memory":
		return NewMemoryStore(), nil
	case "badger", "":
		return NewBadgerStore(path, logger)
	default:
		return nil, fmt.Errorf("unknown docstore provider %q (supported: memory, badger)", provider)
	}
}
