package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/vaultd/internal/sanitize"
)

// QdrantConfig holds configuration for a remote qdrant index.
type QdrantConfig struct {
	// Host is the qdrant server host.
	Host string

	// Port is the qdrant gRPC port.
	Port int

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// VectorSize is the expected embedding dimension.
	VectorSize int

	// MaxRetries is the maximum number of retry attempts for transient
	// failures.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubling per attempt.
	RetryBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

// Validate validates the configuration.
func (c *QdrantConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// isTransient reports whether an error is worth retrying.
func isTransient(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store against a remote qdrant server. Each tenant
// maps to its own collection with cosine distance.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	// partitions tracks collections known to exist.
	partitions sync.Map
}

// NewQdrantStore connects to the configured qdrant server.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", ErrStoreUnavailable, err)
	}

	logger.Info("qdrant vector store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Int("vector_size", config.VectorSize),
	)
	return &QdrantStore{client: client, config: config, logger: logger}, nil
}

// EnsurePartition implements Store.
func (s *QdrantStore) EnsurePartition(ctx context.Context, tenantID string) error {
	name := sanitize.PartitionName(tenantID)
	if _, ok := s.partitions.Load(name); ok {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: checking partition %s: %v", ErrStoreUnavailable, name, err)
	}
	if !exists {
		err = s.retry(ctx, "create_collection", func() error {
			return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: name,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(s.config.VectorSize),
					Distance: qdrant.Distance_Cosine,
				}),
			})
		})
		if err != nil {
			return fmt.Errorf("%w: creating partition %s: %v", ErrStoreUnavailable, name, err)
		}
		s.logger.Info("created tenant partition", zap.String("partition", name))
	}
	s.partitions.Store(name, struct{}{})
	return nil
}

// Upsert implements Store.
func (s *QdrantStore) Upsert(ctx context.Context, tenantID string, vector []float32, metadata map[string]string) (string, error) {
	if len(vector) != s.config.VectorSize {
		return "", fmt.Errorf("%w: got %d, partition expects %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}
	if err := s.EnsurePartition(ctx, tenantID); err != nil {
		return "", err
	}

	id := uuid.New().String()
	payload := make(map[string]*qdrant.Value, len(metadata))
	for k, v := range metadata {
		payload[k] = qdrant.NewValueString(v)
	}

	name := sanitize.PartitionName(tenantID)
	err := s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points: []*qdrant.PointStruct{{
				Id:      qdrant.NewIDUUID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: payload,
			}},
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: upsert into %s: %v", ErrStoreUnavailable, name, err)
	}
	return id, nil
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, tenantID string, vector []float32, k int) ([]SearchResult, error) {
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: got %d, partition expects %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}
	if k <= 0 {
		return nil, nil
	}

	name := sanitize.PartitionName(tenantID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: checking partition %s: %v", ErrStoreUnavailable, name, err)
	}
	if !exists {
		// Fresh tenant, nothing indexed yet.
		return nil, nil
	}

	var points []*qdrant.ScoredPoint
	err = s.retry(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: name,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search in %s: %v", ErrStoreUnavailable, name, err)
	}

	out := make([]SearchResult, 0, len(points))
	for _, p := range points {
		metadata := make(map[string]string, len(p.Payload))
		for k, v := range p.Payload {
			metadata[k] = v.GetStringValue()
		}
		out = append(out, SearchResult{
			ID:       p.Id.GetUuid(),
			Score:    p.Score,
			Metadata: metadata,
		})
	}
	return out, nil
}

// ListPartitions implements Store.
func (s *QdrantStore) ListPartitions(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing partitions: %v", ErrStoreUnavailable, err)
	}

	var tenants []string
	for _, name := range names {
		if tenant, ok := sanitize.TenantFromPartition(name); ok {
			tenants = append(tenants, tenant)
		}
	}
	return tenants, nil
}

// Close implements Store.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// retry runs operation with exponential backoff on transient gRPC errors.
func (s *QdrantStore) retry(ctx context.Context, name string, operation func() error) error {
	backoff := s.config.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		s.logger.Warn("transient qdrant error, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

var _ Store = (*QdrantStore)(nil)
