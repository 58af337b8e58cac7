package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/sanitize"
)

// ChromemConfig holds configuration for the embedded chromem-go index.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	VectorSize int
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store on chromem-go, an embeddable pure-Go vector
// database with gob persistence. Each tenant maps to its own collection.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// collections caches handles per partition name.
	collections sync.Map
}

// NewChromemStore opens (or creates) the index at the configured path.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
	}

	db, err := chromem.NewPersistentDB(config.Path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrStoreUnavailable, err)
	}

	logger.Info("chromem vector store initialized",
		zap.String("path", config.Path),
		zap.Int("vector_size", config.VectorSize),
	)
	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

// rejectEmbedding is installed as the collection embedding func. All vectors
// are computed upstream; reaching this means a caller passed text without a
// precomputed vector, which is a bug.
func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding inside the index is not supported")
}

// EnsurePartition implements Store.
func (s *ChromemStore) EnsurePartition(ctx context.Context, tenantID string) error {
	_, err := s.partition(tenantID)
	return err
}

// Upsert implements Store.
func (s *ChromemStore) Upsert(ctx context.Context, tenantID string, vector []float32, metadata map[string]string) (string, error) {
	if len(vector) != s.config.VectorSize {
		return "", fmt.Errorf("%w: got %d, partition expects %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	collection, err := s.partition(tenantID)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	doc := chromem.Document{
		ID:        id,
		Metadata:  metadata,
		Embedding: vector,
		// chromem requires non-empty content; the record id stands in. The
		// payload itself lives encrypted in the object store.
		Content: id,
	}
	if err := collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return "", fmt.Errorf("%w: upsert: %v", ErrStoreUnavailable, err)
	}
	return id, nil
}

// Search implements Store.
func (s *ChromemStore) Search(ctx context.Context, tenantID string, vector []float32, k int) ([]SearchResult, error) {
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: got %d, partition expects %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}
	if k <= 0 {
		return nil, nil
	}

	name := sanitize.PartitionName(tenantID)
	collection := s.db.GetCollection(name, rejectEmbedding)
	if collection == nil {
		// Fresh tenant, nothing indexed yet.
		return nil, nil
	}

	// chromem errors when asked for more results than documents exist.
	if count := collection.Count(); count < k {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrStoreUnavailable, err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return out, nil
}

// ListPartitions implements Store.
func (s *ChromemStore) ListPartitions(ctx context.Context) ([]string, error) {
	var tenants []string
	for name := range s.db.ListCollections() {
		if tenant, ok := sanitize.TenantFromPartition(name); ok {
			tenants = append(tenants, tenant)
		}
	}
	return tenants, nil
}

// Close implements Store. chromem persists on write, so nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}

func (s *ChromemStore) partition(tenantID string) (*chromem.Collection, error) {
	name := sanitize.PartitionName(tenantID)
	if cached, ok := s.collections.Load(name); ok {
		return cached.(*chromem.Collection), nil
	}

	collection, err := s.db.GetOrCreateCollection(name, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("%w: creating partition %s: %v", ErrStoreUnavailable, name, err)
	}
	s.collections.Store(name, collection)
	return collection, nil
}

var _ Store = (*ChromemStore)(nil)
