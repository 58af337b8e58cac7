// Package config provides configuration loading for vaultd.
package config

import (
	"fmt"

	"github.com/fyrsmithlabs/vaultd/internal/logging"
)

// Config is the root configuration for the vaultd daemon.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     logging.Config    `koanf:"logging"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	ObjectStore ObjectStoreConfig `koanf:"objectstore"`
	KMS         KMSConfig         `koanf:"kms"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Answer      AnswerConfig      `koanf:"answer"`
	Redaction   RedactionConfig   `koanf:"redaction"`
	Anomaly     AnomalyConfig     `koanf:"anomaly"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant" (external).
	Provider string        `koanf:"provider"`
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go vector store.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	VectorSize int    `koanf:"vector_size"`
}

// QdrantConfig configures the external Qdrant gRPC client.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	UseTLS     bool   `koanf:"use_tls"`
	VectorSize int    `koanf:"vector_size"`
}

// ObjectStoreConfig configures the durable ciphertext store.
type ObjectStoreConfig struct {
	Path   string `koanf:"path"`
	Bucket string `koanf:"bucket"`
}

// KMSConfig configures the local key service state.
type KMSConfig struct {
	Path string `koanf:"path"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "openai" (OpenAI-compatible API) or "static"
	// (deterministic local hashing, for development and tests).
	Provider   string `koanf:"provider"`
	BaseURL    string `koanf:"base_url"`
	APIKey     Secret `koanf:"api_key"`
	Model      string `koanf:"model"`
	Dimensions int    `koanf:"dimensions"`
}

// AnswerConfig configures answer synthesis.
type AnswerConfig struct {
	// Provider is "openai" or "static" (extractive fallback, no network).
	Provider  string `koanf:"provider"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
}

// RedactionConfig configures the redaction stage.
type RedactionConfig struct {
	// Provider is "pattern" (built-in rules) or "remote" (NER inference API).
	Provider string   `koanf:"provider"`
	BaseURL  string   `koanf:"base_url"`
	Timeout  Duration `koanf:"timeout"`
}

// AnomalyConfig configures the per-tenant anomaly gate.
type AnomalyConfig struct {
	// MinSamples is the history length at which a tenant's model arms.
	MinSamples int `koanf:"min_samples"`

	// Contamination is the assumed outlier fraction in training data.
	Contamination float64 `koanf:"contamination"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	// TopK is the number of index results fetched per query.
	TopK int `koanf:"top_k"`

	// CallTimeout bounds each call to an external collaborator.
	CallTimeout Duration `koanf:"call_timeout"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10_000_000_000) // 10s
	}

	cfg.Logging.ApplyDefaults()

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.local/share/vaultd/vectorstore"
	}
	if cfg.VectorStore.Chromem.VectorSize == 0 {
		cfg.VectorStore.Chromem.VectorSize = 384
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.VectorSize == 0 {
		cfg.VectorStore.Qdrant.VectorSize = 384
	}

	if cfg.ObjectStore.Path == "" {
		cfg.ObjectStore.Path = "~/.local/share/vaultd/objects"
	}
	if cfg.ObjectStore.Bucket == "" {
		cfg.ObjectStore.Bucket = "vaultd-data"
	}

	if cfg.KMS.Path == "" {
		cfg.KMS.Path = "~/.local/share/vaultd/kms"
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "static"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Embeddings.Dimensions == 0 {
		cfg.Embeddings.Dimensions = 384
	}

	if cfg.Answer.Provider == "" {
		cfg.Answer.Provider = "static"
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4o-mini"
	}
	if cfg.Answer.MaxTokens == 0 {
		cfg.Answer.MaxTokens = 512
	}

	if cfg.Redaction.Provider == "" {
		cfg.Redaction.Provider = "pattern"
	}
	if cfg.Redaction.Timeout == 0 {
		cfg.Redaction.Timeout = Duration(10_000_000_000) // 10s
	}

	if cfg.Anomaly.MinSamples == 0 {
		cfg.Anomaly.MinSamples = 5
	}
	if cfg.Anomaly.Contamination == 0 {
		cfg.Anomaly.Contamination = 0.1
	}

	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = 3
	}
	if cfg.Pipeline.CallTimeout == 0 {
		cfg.Pipeline.CallTimeout = Duration(30_000_000_000) // 30s
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", c.VectorStore.Provider)
	}

	switch c.Embeddings.Provider {
	case "static":
	case "openai":
		if c.Embeddings.APIKey == "" {
			return fmt.Errorf("embeddings.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("unsupported embeddings provider: %s (supported: openai, static)", c.Embeddings.Provider)
	}

	switch c.Answer.Provider {
	case "static":
	case "openai":
		if c.Answer.APIKey == "" {
			return fmt.Errorf("answer.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("unsupported answer provider: %s (supported: openai, static)", c.Answer.Provider)
	}

	switch c.Redaction.Provider {
	case "pattern":
	case "remote":
		if c.Redaction.BaseURL == "" {
			return fmt.Errorf("redaction.base_url is required for the remote provider")
		}
	default:
		return fmt.Errorf("unsupported redaction provider: %s (supported: pattern, remote)", c.Redaction.Provider)
	}

	if c.Anomaly.MinSamples < 1 {
		return fmt.Errorf("anomaly.min_samples must be at least 1, got %d", c.Anomaly.MinSamples)
	}
	if c.Anomaly.Contamination <= 0 || c.Anomaly.Contamination >= 0.5 {
		return fmt.Errorf("anomaly.contamination must be in (0, 0.5), got %g", c.Anomaly.Contamination)
	}

	if c.Pipeline.TopK < 1 {
		return fmt.Errorf("pipeline.top_k must be at least 1, got %d", c.Pipeline.TopK)
	}

	// The index and the embedder must agree on dimensionality.
	vectorSize := c.VectorStore.Chromem.VectorSize
	if c.VectorStore.Provider == "qdrant" {
		vectorSize = c.VectorStore.Qdrant.VectorSize
	}
	if c.Embeddings.Dimensions != vectorSize {
		return fmt.Errorf("embeddings.dimensions (%d) must match vectorstore vector size (%d)",
			c.Embeddings.Dimensions, vectorSize)
	}

	return nil
}
