// Package vectorstore provides tenant-partitioned vector index implementations.
//
// Every tenant owns a structurally separate partition (a collection per
// tenant), created on first write. Search runs against exactly one
// partition, so cross-tenant results are impossible at the index level.
// Vectors are always computed upstream and passed in; the index never
// embeds text itself and never stores plaintext content.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid vectorstore config")

	// ErrStoreUnavailable indicates the backing index failed an operation.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates a vector's length does not match the
	// partition's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Metadata keys attached to every indexed record.
const (
	// MetaStoragePointer addresses the encrypted payload in the object store.
	MetaStoragePointer = "storage_pointer"

	// MetaWrappedDEK is the hex-encoded wrapped data-encryption key.
	MetaWrappedDEK = "wrapped_dek"
)

// SearchResult is one hit from a partition search.
type SearchResult struct {
	// ID is the record id assigned at upsert.
	ID string

	// Score is cosine similarity to the query vector, higher is closer.
	Score float32

	// Metadata is the opaque metadata stored with the record.
	Metadata map[string]string
}

// Store is the tenant-partitioned vector index contract.
type Store interface {
	// EnsurePartition creates the tenant's partition if it does not exist.
	EnsurePartition(ctx context.Context, tenantID string) error

	// Upsert indexes a vector with metadata in the tenant's partition,
	// creating the partition on first use. Returns the new record id.
	Upsert(ctx context.Context, tenantID string, vector []float32, metadata map[string]string) (string, error)

	// Search returns up to k nearest records from the tenant's partition by
	// cosine similarity, best first. A tenant with no partition gets empty
	// results, not an error.
	Search(ctx context.Context, tenantID string, vector []float32, k int) ([]SearchResult, error)

	// ListPartitions returns the tenant ids that currently have partitions.
	ListPartitions(ctx context.Context) ([]string, error)

	// Close releases index resources.
	Close() error
}
