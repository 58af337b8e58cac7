package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider names for NewStore.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
)

// FactoryConfig selects and configures a Store implementation.
type FactoryConfig struct {
	Provider string
	Chromem  ChromemConfig
	Qdrant   QdrantConfig
}

// NewStore creates the configured Store implementation.
func NewStore(config FactoryConfig, logger *zap.Logger) (Store, error) {
	switch config.Provider {
	case ProviderChromem, "":
		return NewChromemStore(config.Chromem, logger)
	case ProviderQdrant:
		return NewQdrantStore(config.Qdrant, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, config.Provider)
	}
}
