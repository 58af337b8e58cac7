// Package objectstore persists encrypted document payloads.
//
// The store only ever sees ciphertext; it addresses blobs by opaque
// pointers of the form vault://{bucket}/{key} so the vector index can
// reference payloads without embedding storage details.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the object store.
var (
	// ErrStorageUnavailable indicates the backing store failed an operation.
	ErrStorageUnavailable = errors.New("object storage unavailable")

	// ErrNotFound indicates no object exists at the given pointer.
	ErrNotFound = errors.New("object not found")

	// ErrBadPointer indicates the pointer is malformed or names a foreign bucket.
	ErrBadPointer = errors.New("malformed storage pointer")
)

const pointerScheme = "vault://"

// Store is the blob storage contract for encrypted payloads.
type Store interface {
	// Put stores data under key and returns a pointer addressing it.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Get fetches the object a pointer addresses.
	Get(ctx context.Context, pointer string) ([]byte, error)

	// Close releases store resources.
	Close() error
}

// FormatPointer builds the canonical pointer for a bucket and key.
func FormatPointer(bucket, key string) string {
	return pointerScheme + bucket + "/" + key
}

// ParsePointer splits a pointer into bucket and key.
func ParsePointer(pointer string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(pointer, pointerScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrBadPointer, pointer)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadPointer, pointer)
	}
	return bucket, key, nil
}
