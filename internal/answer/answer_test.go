package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("where does the engineer work", []string{"passage one", "passage two"})

	assert.Contains(t, prompt, "context:\npassage one\npassage two")
	assert.Contains(t, prompt, "question: where does the engineer work")
}

func TestStaticSynthesizer(t *testing.T) {
	s := NewStaticSynthesizer()

	got, err := s.Synthesize(context.Background(), "q", []string{"doc a", "doc b"})
	require.NoError(t, err)
	assert.Contains(t, got, "2 matching document(s)")
	assert.Contains(t, got, "doc a | doc b")
}

func TestOpenAISynthesizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "The engineer works at the company."}}]
		}`))
	}))
	defer server.Close()

	s, err := NewOpenAISynthesizer(OpenAIConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	}, zap.NewNop())
	require.NoError(t, err)

	got, err := s.Synthesize(context.Background(), "where does the engineer work", []string{"the engineer works at the company"})
	require.NoError(t, err)
	assert.Equal(t, "The engineer works at the company.", got)
}

func TestOpenAISynthesizerAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	s, err := NewOpenAISynthesizer(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key"}, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Synthesize(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
}

func TestNewOpenAISynthesizerRequiresKey(t *testing.T) {
	_, err := NewOpenAISynthesizer(OpenAIConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewSynthesizerFactory(t *testing.T) {
	t.Run("static by default", func(t *testing.T) {
		s, err := NewSynthesizer(ProviderConfig{}, zap.NewNop())
		require.NoError(t, err)
		_, ok := s.(*StaticSynthesizer)
		assert.True(t, ok)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewSynthesizer(ProviderConfig{Provider: "llama"}, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
