package kms

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	masterKeySize = 32 // AES-256
	nonceSize     = 12
	keyIDSize     = 16 // raw uuid bytes prefixed to every wrapped blob

	keyPrefix   = "key/"
	aliasPrefix = "alias/"
)

// LocalService is a badger-backed Service implementation.
//
// Master keys are random 32-byte AES-256 keys persisted in badger, so
// provisioned key-service state survives restarts. A wrapped DEK blob is
// laid out as:
//
//	keyID (16 raw uuid bytes) || nonce (12 bytes) || AES-GCM(DEK)
//
// The prefix lets Decrypt locate the wrapping master key, and it is bound
// into the seal as GCM additional data. Master keys are one per tenant, so
// a wrapped blob is cryptographically tied to both its master key and the
// tenant identity that key stands for; rewriting the prefix to point at a
// different key fails authentication.
type LocalService struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewLocalService opens (or creates) the key-service state at path.
func NewLocalService(path string, logger *zap.Logger) (*LocalService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening key store at %s: %w", path, err)
	}

	logger.Info("local key service initialized", zap.String("path", path))
	return &LocalService{db: db, logger: logger}, nil
}

// CreateKey implements Service.
func (s *LocalService) CreateKey(ctx context.Context, description string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	material := make([]byte, masterKeySize)
	if _, err := rand.Read(material); err != nil {
		return "", fmt.Errorf("%w: generating key material: %v", ErrProvisioningFailed, err)
	}

	keyID := uuid.New().String()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+keyID), material)
	})
	Zero(material)
	if err != nil {
		return "", fmt.Errorf("%w: persisting master key: %v", ErrProvisioningFailed, err)
	}

	s.logger.Info("created master key",
		zap.String("key_id", keyID),
		zap.String("description", description),
	)
	return keyID, nil
}

// CreateAlias implements Service.
func (s *LocalService) CreateAlias(ctx context.Context, alias, keyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(aliasPrefix + alias)); err == nil {
			return ErrAliasExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set([]byte(aliasPrefix+alias), []byte(keyID))
	})
	if err != nil {
		if err == ErrAliasExists {
			return ErrAliasExists
		}
		return fmt.Errorf("%w: binding alias: %v", ErrProvisioningFailed, err)
	}
	return nil
}

// ResolveAlias implements Service.
func (s *LocalService) ResolveAlias(ctx context.Context, alias string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var keyID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(aliasPrefix + alias))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			keyID = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", ErrAliasNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving alias: %w", err)
	}
	return keyID, nil
}

// GenerateDataKey implements Service.
func (s *LocalService) GenerateDataKey(ctx context.Context, keyID string) ([]byte, []byte, error) {
	master, err := s.loadMasterKey(ctx, keyID)
	if err != nil {
		return nil, nil, err
	}
	defer Zero(master)

	dek := make([]byte, DEKSize)
	if _, err := rand.Read(dek); err != nil {
		return nil, nil, fmt.Errorf("generating data key: %w", err)
	}

	aead, err := newAEAD(master)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	rawID, err := uuid.Parse(keyID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: malformed key id %q", ErrKeyUnavailable, keyID)
	}

	wrapped := make([]byte, 0, keyIDSize+nonceSize+len(dek)+aead.Overhead())
	wrapped = append(wrapped, rawID[:]...)
	wrapped = append(wrapped, nonce...)
	wrapped = aead.Seal(wrapped, nonce, dek, rawID[:])

	return dek, wrapped, nil
}

// Decrypt implements Service.
func (s *LocalService) Decrypt(ctx context.Context, wrapped []byte) ([]byte, error) {
	if len(wrapped) < keyIDSize+nonceSize+1 {
		return nil, fmt.Errorf("%w: wrapped blob too short", ErrKeyUnavailable)
	}

	var rawID uuid.UUID
	copy(rawID[:], wrapped[:keyIDSize])
	keyID := rawID.String()

	master, err := s.loadMasterKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	defer Zero(master)

	aead, err := newAEAD(master)
	if err != nil {
		return nil, err
	}

	nonce := wrapped[keyIDSize : keyIDSize+nonceSize]
	dek, err := aead.Open(nil, nonce, wrapped[keyIDSize+nonceSize:], rawID[:])
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap authentication failed", ErrKeyUnavailable)
	}
	return dek, nil
}

// Close implements Service.
func (s *LocalService) Close() error {
	return s.db.Close()
}

func (s *LocalService) loadMasterKey(ctx context.Context, keyID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var material []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + keyID))
		if err != nil {
			return err
		}
		material, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: unknown master key %s", ErrKeyUnavailable, keyID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading master key: %w", err)
	}
	return material, nil
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

var _ Service = (*LocalService)(nil)
