package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, 384, cfg.VectorStore.Chromem.VectorSize)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 5, cfg.Anomaly.MinSamples)
	assert.InDelta(t, 0.1, cfg.Anomaly.Contamination, 1e-9)
	assert.Equal(t, 3, cfg.Pipeline.TopK)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.CallTimeout.Duration())
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9191
anomaly:
  min_samples: 8
pipeline:
  top_k: 5
  call_timeout: 5s
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Anomaly.MinSamples)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.CallTimeout.Duration())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("ANOMALY_MIN_SAMPLES", "6")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 6, cfg.Anomaly.MinSamples)
}

func TestEnvOverrideNestedVectorStore(t *testing.T) {
	t.Setenv("VECTORSTORE_CHROMEM_PATH", "/var/lib/vaultd/index")
	t.Setenv("VECTORSTORE_QDRANT_VECTOR_SIZE", "768")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/vaultd/index", cfg.VectorStore.Chromem.Path)
	assert.Equal(t, 768, cfg.VectorStore.Qdrant.VectorSize)
}

func TestValidateRejectsDimensionMismatch(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Embeddings.Dimensions = 768
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must match vectorstore vector size")
}

func TestValidateRejectsUnknownProviders(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.VectorStore.Provider = "pinecone"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresAPIKeyForOpenAI(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Embeddings.Provider = "openai"
	cfg.Embeddings.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg.Embeddings.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-very-secret", s.Value())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "very-secret")
}
