// Package envelope implements envelope encryption of document payloads.
//
// Each payload is encrypted under a fresh single-use data-encryption key
// (DEK) minted by the key-management client. The DEK itself travels only in
// wrapped form; the plaintext DEK lives for the duration of one encrypt or
// decrypt call and is zeroed before return.
package envelope

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/vaultd/internal/kms"
)

const nonceSize = 12

// ErrDecryptionFailed indicates ciphertext authentication failed. The
// ciphertext may be corrupt or the supplied DEK is not the one that
// produced it.
var ErrDecryptionFailed = errors.New("decryption failed")

// KeyClient is the slice of the key-management client the codec needs.
type KeyClient interface {
	GenerateDataKey(ctx context.Context, tenantID string) (plaintext, wrapped []byte, err error)
	UnwrapDataKey(ctx context.Context, wrapped []byte) ([]byte, error)
}

// Codec encrypts and decrypts payloads with per-payload DEKs.
type Codec struct {
	keys KeyClient
}

// NewCodec creates an envelope codec backed by the given key client.
func NewCodec(keys KeyClient) *Codec {
	return &Codec{keys: keys}
}

// Encrypt encrypts plaintext under a fresh DEK wrapped by the tenant's
// master key. It returns the ciphertext (nonce-prefixed AES-GCM) and the
// wrapped DEK; the caller persists both and never sees the plaintext DEK.
func (c *Codec) Encrypt(ctx context.Context, tenantID string, plaintext []byte) (ciphertext, wrappedDEK []byte, err error) {
	dek, wrapped, err := c.keys.GenerateDataKey(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("minting data key: %w", err)
	}
	defer kms.Zero(dek)

	aead, err := newAEAD(dek)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, nonceSize+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, wrapped, nil
}

// Decrypt unwraps the DEK through the key client and decrypts ciphertext.
// Key-layer failures (unknown or foreign master key) surface as
// kms.ErrKeyUnavailable; authentication failures on the payload itself as
// ErrDecryptionFailed.
func (c *Codec) Decrypt(ctx context.Context, ciphertext, wrappedDEK []byte) ([]byte, error) {
	dek, err := c.keys.UnwrapDataKey(ctx, wrappedDEK)
	if err != nil {
		return nil, fmt.Errorf("unwrapping data key: %w", err)
	}
	defer kms.Zero(dek)

	if len(ciphertext) < nonceSize+1 {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	aead, err := newAEAD(dek)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}
