// Package embeddings provides embedding generation for the ingest and query
// paths.
//
// The same provider instance serves both paths so stored vectors and query
// vectors always share a model and dimensionality.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Sentinel errors for embedding operations.
var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")

	// ErrProviderFailed indicates the embedding backend failed.
	ErrProviderFailed = errors.New("embedding provider failed")
)

// Provider generates vector embeddings from text.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "openai" or "static".
	Provider string
	// BaseURL is the OpenAI-compatible API endpoint (openai provider only).
	BaseURL string
	// APIKey authenticates against the API (openai provider only).
	APIKey string
	// Model is the embedding model name.
	Model string
	// Dimensions is the embedding dimension.
	Dimensions int
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg, logger)
	case "static", "":
		return NewStaticProvider(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
