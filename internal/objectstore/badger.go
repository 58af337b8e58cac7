package objectstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerStore is a badger-backed Store. A single badger database holds one
// logical bucket; objects are keyed by the caller's key directly.
type BadgerStore struct {
	db     *badger.DB
	bucket string
	logger *zap.Logger
}

// NewBadgerStore opens (or creates) the object store at path, serving the
// named bucket.
func NewBadgerStore(path, bucket string, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bucket == "" {
		return nil, fmt.Errorf("%w: empty bucket name", ErrStorageUnavailable)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening object store at %s: %v", ErrStorageUnavailable, path, err)
	}

	logger.Info("object store initialized",
		zap.String("path", path),
		zap.String("bucket", bucket),
	)
	return &BadgerStore{db: db, bucket: bucket, logger: logger}, nil
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%w: empty object key", ErrBadPointer)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrStorageUnavailable, key, err)
	}
	return FormatPointer(s.bucket, key), nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, pointer string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bucket, key, err := ParsePointer(pointer)
	if err != nil {
		return nil, err
	}
	if bucket != s.bucket {
		return nil, fmt.Errorf("%w: pointer names bucket %q, store serves %q", ErrBadPointer, bucket, s.bucket)
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pointer)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStorageUnavailable, key, err)
	}
	return data, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)
