// Package kms implements the envelope-encryption key hierarchy.
//
// Every tenant owns exactly one master key, provisioned lazily on first use
// and addressed through a deterministic alias derived from the tenant id.
// Master keys only wrap and unwrap data-encryption keys (DEKs); they never
// touch content. A wrapped DEK is cryptographically bound to the master key
// that wrapped it, so a blob created for tenant A can never be unwrapped
// through tenant B's key - this holds independent of any index-level
// partitioning.
package kms

import (
	"context"
	"errors"
)

// DEKSize is the size of a data-encryption key in bytes (AES-256).
const DEKSize = 32

// Sentinel errors for key operations.
var (
	// ErrProvisioningFailed indicates master key creation or aliasing failed.
	ErrProvisioningFailed = errors.New("key provisioning failed")

	// ErrKeyUnavailable indicates a wrapped key cannot be unwrapped, either
	// because the wrapping master key is unknown or because authentication
	// failed (foreign-tenant blob).
	ErrKeyUnavailable = errors.New("key unavailable")

	// ErrAliasNotFound indicates the alias has no key bound to it.
	ErrAliasNotFound = errors.New("alias not found")

	// ErrAliasExists indicates the alias is already bound to a key.
	ErrAliasExists = errors.New("alias already exists")
)

// KeyHandle identifies a provisioned master key.
type KeyHandle struct {
	// KeyID is the key service's identifier for the master key.
	KeyID string

	// Alias is the deterministic tenant alias bound to the key.
	Alias string
}

// Service is the narrow contract against the underlying key service.
//
// It mirrors the conventional KMS surface: create a master key, bind an
// alias, mint a wrapped+plaintext data key under a master key, and unwrap a
// wrapped data key. The service guarantees a wrapped key is bound to the
// master key that wrapped it.
type Service interface {
	// CreateKey creates a new master key and returns its id.
	CreateKey(ctx context.Context, description string) (string, error)

	// CreateAlias binds alias to keyID. Fails with ErrAliasExists if the
	// alias is already bound.
	CreateAlias(ctx context.Context, alias, keyID string) error

	// ResolveAlias returns the key id bound to alias, or ErrAliasNotFound.
	ResolveAlias(ctx context.Context, alias string) (string, error)

	// GenerateDataKey mints a fresh DEK under the master key, returning the
	// plaintext key and its wrapped form. The plaintext key exists only for
	// the duration of a single encrypt call; callers must zero it after use.
	GenerateDataKey(ctx context.Context, keyID string) (plaintext, wrapped []byte, err error)

	// Decrypt unwraps a wrapped DEK. Fails with ErrKeyUnavailable if the
	// wrapping master key is unknown or authentication fails.
	Decrypt(ctx context.Context, wrapped []byte) ([]byte, error)

	// Close releases key-service resources.
	Close() error
}

// Zero overwrites key material in place. Callers zero every plaintext DEK
// immediately after its single encrypt or decrypt use.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
