package answer

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig holds configuration for the OpenAI-compatible synthesizer.
type OpenAIConfig struct {
	// BaseURL overrides the API endpoint, for OpenAI-compatible servers.
	BaseURL string

	// APIKey authenticates against the endpoint.
	APIKey string

	// Model is the chat model to use.
	Model string

	// MaxTokens caps the generated answer length.
	MaxTokens int
}

// OpenAISynthesizer generates answers through an OpenAI-compatible chat
// completion endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	config OpenAIConfig
	logger *zap.Logger
}

// NewOpenAISynthesizer creates a chat-completion-backed synthesizer.
func NewOpenAISynthesizer(config OpenAIConfig, logger *zap.Logger) (*OpenAISynthesizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(cfg),
		config: config,
		logger: logger,
	}, nil
}

// Synthesize implements Synthesizer.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, question string, passages []string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(question, passages),
			},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: api status %d", ErrSynthesisFailed, apiErr.HTTPStatusCode)
		}
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrSynthesisFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Synthesizer = (*OpenAISynthesizer)(nil)
