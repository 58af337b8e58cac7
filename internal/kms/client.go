package kms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/sanitize"
)

// Client provides per-tenant key operations on top of a Service.
//
// The first operation for a tenant provisions durable key-service state
// (master key + alias). Provisioning is idempotent under concurrent first
// use: a per-tenant lock serializes the check-then-create sequence, and a
// racer that loses the alias bind resolves to the winner's key, so at most
// one master key is ever bound per tenant.
type Client struct {
	service Service
	logger  *zap.Logger

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
	handles sync.Map // alias -> KeyHandle
}

// NewClient creates a key-management client.
func NewClient(service Service, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		service: service,
		logger:  logger,
		tenants: make(map[string]*sync.Mutex),
	}
}

// EnsureMasterKey returns the tenant's master key handle, provisioning the
// key and alias on first use.
func (c *Client) EnsureMasterKey(ctx context.Context, tenantID string) (KeyHandle, error) {
	alias := sanitize.KeyAlias(tenantID)

	if h, ok := c.handles.Load(alias); ok {
		return h.(KeyHandle), nil
	}

	lock := c.tenantLock(alias)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: another request may have provisioned.
	if h, ok := c.handles.Load(alias); ok {
		return h.(KeyHandle), nil
	}

	keyID, err := c.service.ResolveAlias(ctx, alias)
	switch {
	case err == nil:
		// Already provisioned in a previous process lifetime.
	case errors.Is(err, ErrAliasNotFound):
		keyID, err = c.provision(ctx, tenantID, alias)
		if err != nil {
			return KeyHandle{}, err
		}
	default:
		return KeyHandle{}, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	handle := KeyHandle{KeyID: keyID, Alias: alias}
	c.handles.Store(alias, handle)
	return handle, nil
}

// GenerateDataKey mints a fresh single-use DEK under the tenant's master
// key, ensuring the master key exists first.
func (c *Client) GenerateDataKey(ctx context.Context, tenantID string) (plaintext, wrapped []byte, err error) {
	handle, err := c.EnsureMasterKey(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return c.service.GenerateDataKey(ctx, handle.KeyID)
}

// UnwrapDataKey unwraps a wrapped DEK. The blob identifies its own wrapping
// master key; a blob produced under a different tenant's master key fails
// with ErrKeyUnavailable.
func (c *Client) UnwrapDataKey(ctx context.Context, wrapped []byte) ([]byte, error) {
	return c.service.Decrypt(ctx, wrapped)
}

// provision creates and aliases a master key, tolerating a lost bind race.
func (c *Client) provision(ctx context.Context, tenantID, alias string) (string, error) {
	keyID, err := c.service.CreateKey(ctx, "master key for tenant "+tenantID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	err = c.service.CreateAlias(ctx, alias, keyID)
	if errors.Is(err, ErrAliasExists) {
		// Lost the race to another writer; use the winner's key. The orphaned
		// key we just created stays unused.
		winner, rerr := c.service.ResolveAlias(ctx, alias)
		if rerr != nil {
			return "", fmt.Errorf("%w: %v", ErrProvisioningFailed, rerr)
		}
		c.logger.Warn("lost master key provisioning race",
			zap.String("alias", alias),
			zap.String("orphaned_key_id", keyID),
		)
		return winner, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	c.logger.Info("provisioned tenant master key",
		zap.String("alias", alias),
		zap.String("key_id", keyID),
	)
	return keyID, nil
}

func (c *Client) tenantLock(alias string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.tenants[alias]
	if !ok {
		lock = &sync.Mutex{}
		c.tenants[alias] = lock
	}
	return lock
}
