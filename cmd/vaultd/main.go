// Command vaultd runs the secure multi-tenant document pipeline daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/anomaly"
	"github.com/fyrsmithlabs/vaultd/internal/answer"
	"github.com/fyrsmithlabs/vaultd/internal/config"
	"github.com/fyrsmithlabs/vaultd/internal/embeddings"
	"github.com/fyrsmithlabs/vaultd/internal/envelope"
	"github.com/fyrsmithlabs/vaultd/internal/httpapi"
	"github.com/fyrsmithlabs/vaultd/internal/kms"
	"github.com/fyrsmithlabs/vaultd/internal/logging"
	"github.com/fyrsmithlabs/vaultd/internal/metrics"
	"github.com/fyrsmithlabs/vaultd/internal/objectstore"
	"github.com/fyrsmithlabs/vaultd/internal/pipeline"
	"github.com/fyrsmithlabs/vaultd/internal/redact"
	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "vaultd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Register()

	kmsService, err := kms.NewLocalService(cfg.KMS.Path, logger)
	if err != nil {
		return fmt.Errorf("initializing key service: %w", err)
	}
	defer kmsService.Close()
	codec := envelope.NewCodec(kms.NewClient(kmsService, logger))

	objects, err := objectstore.NewBadgerStore(cfg.ObjectStore.Path, cfg.ObjectStore.Bucket, logger)
	if err != nil {
		return fmt.Errorf("initializing object store: %w", err)
	}
	defer objects.Close()

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:   cfg.Embeddings.Provider,
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey.Value(),
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}
	defer embedder.Close()

	index, err := vectorstore.NewStore(vectorstore.FactoryConfig{
		Provider: cfg.VectorStore.Provider,
		Chromem: vectorstore.ChromemConfig{
			Path:       cfg.VectorStore.Chromem.Path,
			Compress:   cfg.VectorStore.Chromem.Compress,
			VectorSize: cfg.VectorStore.Chromem.VectorSize,
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
			VectorSize: cfg.VectorStore.Qdrant.VectorSize,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer index.Close()

	scrubber, err := newScrubber(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing scrubber: %w", err)
	}

	synthesizer, err := answer.NewSynthesizer(answer.ProviderConfig{
		Provider: cfg.Answer.Provider,
		OpenAI: answer.OpenAIConfig{
			BaseURL:   cfg.Answer.BaseURL,
			APIKey:    cfg.Answer.APIKey.Value(),
			Model:     cfg.Answer.Model,
			MaxTokens: cfg.Answer.MaxTokens,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing synthesizer: %w", err)
	}

	gate := anomaly.NewGate(anomaly.Config{
		MinSamples:    cfg.Anomaly.MinSamples,
		Contamination: cfg.Anomaly.Contamination,
	}, logger)

	orchestrator := pipeline.NewOrchestrator(
		pipeline.Config{
			TopK:        cfg.Pipeline.TopK,
			CallTimeout: cfg.Pipeline.CallTimeout.Duration(),
		},
		scrubber, codec, objects, embedder, index, gate, synthesizer, logger,
	)

	server, err := httpapi.NewServer(orchestrator, logger, httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func newScrubber(cfg *config.Config, logger *zap.Logger) (redact.Scrubber, error) {
	switch cfg.Redaction.Provider {
	case "pattern", "":
		return redact.NewPatternScrubber(redact.DefaultRules())
	case "remote":
		return redact.NewRemoteScrubber(cfg.Redaction.BaseURL, cfg.Redaction.Timeout.Duration(), logger), nil
	default:
		return nil, fmt.Errorf("unknown redaction provider %q", cfg.Redaction.Provider)
	}
}
