// Package pipeline orchestrates the secure document flow.
//
// Ingest runs redaction, envelope encryption, object storage, and vector
// indexing in that order; plaintext never reaches storage or the index.
// Query runs embedding, the advisory anomaly gate, partition-scoped vector
// search, fetch and decrypt of the matching payloads, and answer synthesis.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/anomaly"
	"github.com/fyrsmithlabs/vaultd/internal/answer"
	"github.com/fyrsmithlabs/vaultd/internal/embeddings"
	"github.com/fyrsmithlabs/vaultd/internal/envelope"
	"github.com/fyrsmithlabs/vaultd/internal/kms"
	"github.com/fyrsmithlabs/vaultd/internal/metrics"
	"github.com/fyrsmithlabs/vaultd/internal/objectstore"
	"github.com/fyrsmithlabs/vaultd/internal/redact"
	"github.com/fyrsmithlabs/vaultd/internal/sanitize"
	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

// Config holds orchestrator tuning parameters.
type Config struct {
	// TopK is the number of nearest records retrieved per query.
	TopK int

	// CallTimeout bounds each external call (model, store, index).
	CallTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 30 * time.Second
	}
}

// IngestResult describes a successfully ingested document.
type IngestResult struct {
	// RecordID is the vector index record id.
	RecordID string

	// StoragePointer addresses the encrypted payload.
	StoragePointer string

	// ScrubbedPreview is the stored (redacted) form of the document.
	ScrubbedPreview string
}

// Document is one retrieved passage that survived fetch and decrypt.
type Document struct {
	// Score is cosine similarity to the query.
	Score float32 `json:"score"`

	// Content is the decrypted (redacted) document text.
	Content string `json:"content"`

	// StoragePointer addresses the encrypted payload.
	StoragePointer string `json:"storage_pointer"`
}

// QueryResult is the outcome of one query.
type QueryResult struct {
	// Documents are the passages that fed the answer, best match first.
	Documents []Document

	// Answer is the synthesized answer, or the canned fallback when no
	// context survived retrieval or synthesis failed.
	Answer string

	// Flagged reports the advisory anomaly verdict for this query.
	Flagged bool

	// Matches is the number of index hits before fetch and decrypt.
	Matches int
}

// TenantInfo is one row of the tenant overview.
type TenantInfo struct {
	TenantID      string `json:"tenant_id"`
	DetectorState string `json:"detector_state"`
	QueryCount    int    `json:"query_count"`
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	config      Config
	scrubber    redact.Scrubber
	codec       *envelope.Codec
	objects     objectstore.Store
	embedder    embeddings.Provider
	index       vectorstore.Store
	gate        *anomaly.Gate
	synthesizer answer.Synthesizer
	logger      *zap.Logger
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(
	config Config,
	scrubber redact.Scrubber,
	codec *envelope.Codec,
	objects objectstore.Store,
	embedder embeddings.Provider,
	index vectorstore.Store,
	gate *anomaly.Gate,
	synthesizer answer.Synthesizer,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	return &Orchestrator{
		config:      config,
		scrubber:    scrubber,
		codec:       codec,
		objects:     objects,
		embedder:    embedder,
		index:       index,
		gate:        gate,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Ingest runs a document through redaction, encryption, storage, and
// indexing. There is no rollback: a failure at a later stage leaves the
// artifacts of earlier stages in place, and the caller may retry.
func (o *Orchestrator) Ingest(ctx context.Context, tenantID, text string) (*IngestResult, error) {
	start := time.Now()
	result, err := o.ingest(ctx, tenantID, text)
	if err != nil {
		metrics.IngestTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.IngestTotal.WithLabelValues("ok").Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

func (o *Orchestrator) ingest(ctx context.Context, tenantID, text string) (*IngestResult, error) {
	if tenantID == "" {
		return nil, &IngestError{Stage: StageValidate, Err: fmt.Errorf("%w: tenant id is required", ErrInvalidInput)}
	}
	if text == "" {
		return nil, &IngestError{Stage: StageValidate, Err: fmt.Errorf("%w: document text is required", ErrInvalidInput)}
	}

	redacted, err := o.scrub(ctx, text)
	if err != nil {
		return nil, &IngestError{Stage: StageRedact, Err: err}
	}

	ciphertext, wrappedDEK, err := o.encrypt(ctx, tenantID, redacted)
	if err != nil {
		return nil, &IngestError{Stage: StageEncrypt, Err: err}
	}

	key := sanitize.Identifier(tenantID) + "/" + uuid.New().String() + ".enc"
	pointer, err := o.store(ctx, key, ciphertext)
	if err != nil {
		return nil, &IngestError{Stage: StageStore, Err: err}
	}

	vector, err := o.embed(ctx, redacted)
	if err != nil {
		return nil, &IngestError{Stage: StageEmbed, Err: err}
	}

	recordID, err := o.upsert(ctx, tenantID, vector, map[string]string{
		vectorstore.MetaStoragePointer: pointer,
		vectorstore.MetaWrappedDEK:     hex.EncodeToString(wrappedDEK),
	})
	if err != nil {
		return nil, &IngestError{Stage: StageIndex, Err: err}
	}

	o.logger.Info("document ingested",
		zap.String("tenant", tenantID),
		zap.String("record_id", recordID),
		zap.String("pointer", pointer),
	)
	return &IngestResult{
		RecordID:        recordID,
		StoragePointer:  pointer,
		ScrubbedPreview: redacted,
	}, nil
}

// Query answers a question from the tenant's documents.
func (o *Orchestrator) Query(ctx context.Context, tenantID, query string) (*QueryResult, error) {
	start := time.Now()
	result, err := o.query(ctx, tenantID, query)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.QueryTotal.WithLabelValues("ok").Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

func (o *Orchestrator) query(ctx context.Context, tenantID, query string) (*QueryResult, error) {
	if tenantID == "" {
		return nil, &QueryError{Stage: StageValidate, Err: fmt.Errorf("%w: tenant id is required", ErrInvalidInput)}
	}
	if query == "" {
		return nil, &QueryError{Stage: StageValidate, Err: fmt.Errorf("%w: query text is required", ErrInvalidInput)}
	}

	vector, err := o.embed(ctx, query)
	if err != nil {
		return nil, &QueryError{Stage: StageEmbed, Err: err}
	}

	// The gate keys tenants by the same canonical id the index partitions
	// use, so the tenant overview lines up with partition listings. The
	// query joins the training history before it is scored, so the fifth
	// query of a tenant already receives a model verdict; the verdict is
	// advisory and the pipeline continues either way.
	tenantKey := sanitize.Identifier(tenantID)
	o.gate.LogQuery(tenantKey, vector)
	flagged := o.gate.IsAnomalous(tenantKey, vector)
	if flagged {
		o.logger.Warn("query flagged as anomalous",
			zap.String("tenant", tenantID),
		)
	}

	hits, err := o.search(ctx, tenantID, vector)
	if err != nil {
		return nil, &QueryError{Stage: StageSearch, Err: err}
	}

	documents, err := o.fetchContext(ctx, tenantID, hits)
	if err != nil {
		return nil, &QueryError{Stage: StageFetch, Err: err}
	}

	if len(documents) == 0 {
		return &QueryResult{
			Answer:  answer.FallbackAnswer,
			Flagged: flagged,
			Matches: len(hits),
		}, nil
	}

	passages := make([]string, len(documents))
	for i, doc := range documents {
		passages[i] = doc.Content
	}

	text, err := o.synthesize(ctx, query, passages)
	if err != nil {
		// Retrieval already succeeded; a synthesis outage degrades to the
		// canned answer instead of failing the whole query.
		o.logger.Warn("answer synthesis failed, returning fallback",
			zap.String("tenant", tenantID),
			zap.Error(err),
		)
		text = answer.FallbackAnswer
	}

	return &QueryResult{
		Documents: documents,
		Answer:    text,
		Flagged:   flagged,
		Matches:   len(hits),
	}, nil
}

// fetchContext resolves index hits to plaintext passages. A hit whose own
// record is unreadable (decryption failure, unknown key, missing or corrupt
// record) is dropped with a logged warning. Failures of the storage layer
// itself abort the whole query.
func (o *Orchestrator) fetchContext(ctx context.Context, tenantID string, hits []vectorstore.SearchResult) ([]Document, error) {
	documents := make([]Document, 0, len(hits))
	for _, hit := range hits {
		content, err := o.resolveHit(ctx, hit)
		switch {
		case err == nil:
			documents = append(documents, Document{
				Score:          hit.Score,
				Content:        content,
				StoragePointer: hit.Metadata[vectorstore.MetaStoragePointer],
			})
		case recordUnreadable(err):
			metrics.DecryptDroppedTotal.Inc()
			o.logger.Warn("dropping unreadable result",
				zap.String("tenant", tenantID),
				zap.String("record_id", hit.ID),
				zap.Error(err),
			)
		default:
			return nil, err
		}
	}
	return documents, nil
}

// recordUnreadable reports whether a fetch-and-decrypt failure condemns a
// single record rather than the storage layer.
func recordUnreadable(err error) bool {
	return errors.Is(err, envelope.ErrDecryptionFailed) ||
		errors.Is(err, kms.ErrKeyUnavailable) ||
		errors.Is(err, objectstore.ErrNotFound) ||
		errors.Is(err, objectstore.ErrBadPointer) ||
		errors.Is(err, errBadRecordMetadata)
}

func (o *Orchestrator) resolveHit(ctx context.Context, hit vectorstore.SearchResult) (string, error) {
	pointer := hit.Metadata[vectorstore.MetaStoragePointer]
	dekHex := hit.Metadata[vectorstore.MetaWrappedDEK]
	if pointer == "" || dekHex == "" {
		return "", fmt.Errorf("%w: record %s has incomplete metadata", errBadRecordMetadata, hit.ID)
	}

	wrappedDEK, err := hex.DecodeString(dekHex)
	if err != nil {
		return "", fmt.Errorf("%w: decoding wrapped key: %v", errBadRecordMetadata, err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()

	ciphertext, err := o.objects.Get(ctx, pointer)
	if err != nil {
		return "", fmt.Errorf("fetching payload: %w", err)
	}

	plaintext, err := o.codec.Decrypt(ctx, ciphertext, wrappedDEK)
	if err != nil {
		return "", fmt.Errorf("decrypting payload: %w", err)
	}
	return string(plaintext), nil
}

// Tenants reports every tenant known to the index with its anomaly
// detector state.
func (o *Orchestrator) Tenants(ctx context.Context) ([]TenantInfo, error) {
	ids, err := o.index.ListPartitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}

	infos := make([]TenantInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, TenantInfo{
			TenantID:      id,
			DetectorState: string(o.gate.TenantState(id)),
			QueryCount:    o.gate.HistoryLen(id),
		})
	}
	return infos, nil
}

// Stage wrappers apply the per-call timeout and map model failures to
// ErrModelUnavailable.

func (o *Orchestrator) scrub(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	return o.scrubber.Scrub(ctx, text)
}

func (o *Orchestrator) encrypt(ctx context.Context, tenantID, text string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	return o.codec.Encrypt(ctx, tenantID, []byte(text))
}

func (o *Orchestrator) store(ctx context.Context, key string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	return o.objects.Put(ctx, key, data)
}

func (o *Orchestrator) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	vector, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return vector, nil
}

func (o *Orchestrator) upsert(ctx context.Context, tenantID string, vector []float32, metadata map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	return o.index.Upsert(ctx, tenantID, vector, metadata)
}

func (o *Orchestrator) search(ctx context.Context, tenantID string, vector []float32) ([]vectorstore.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	return o.index.Search(ctx, tenantID, vector, o.config.TopK)
}

func (o *Orchestrator) synthesize(ctx context.Context, query string, passages []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	text, err := o.synthesizer.Synthesize(ctx, query, passages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return text, nil
}
