package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// StaticSynthesizer is a model-free Synthesizer for local development and
// tests. It echoes the retrieved context rather than generating prose.
type StaticSynthesizer struct{}

// NewStaticSynthesizer creates a static synthesizer.
func NewStaticSynthesizer() *StaticSynthesizer {
	return &StaticSynthesizer{}
}

// Synthesize implements Synthesizer.
func (s *StaticSynthesizer) Synthesize(ctx context.Context, question string, passages []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Based on %d matching document(s): %s", len(passages), strings.Join(passages, " | ")), nil
}

// ProviderConfig selects and configures a Synthesizer.
type ProviderConfig struct {
	Provider string
	OpenAI   OpenAIConfig
}

// NewSynthesizer creates the configured Synthesizer implementation.
func NewSynthesizer(config ProviderConfig, logger *zap.Logger) (Synthesizer, error) {
	switch config.Provider {
	case "static", "":
		return NewStaticSynthesizer(), nil
	case "openai":
		return NewOpenAISynthesizer(config.OpenAI, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, config.Provider)
	}
}

var _ Synthesizer = (*StaticSynthesizer)(nil)
