package kms

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *LocalService {
	t.Helper()
	svc, err := NewLocalService(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestLocalServiceDataKeyRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	keyID, err := svc.CreateKey(ctx, "test key")
	require.NoError(t, err)

	plaintext, wrapped, err := svc.GenerateDataKey(ctx, keyID)
	require.NoError(t, err)
	assert.Len(t, plaintext, DEKSize)
	assert.NotContains(t, string(wrapped), string(plaintext))

	unwrapped, err := svc.Decrypt(ctx, wrapped)
	require.NoError(t, err)
	assert.Equal(t, plaintext, unwrapped)
}

func TestLocalServiceSingleUseDEKs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	keyID, err := svc.CreateKey(ctx, "test key")
	require.NoError(t, err)

	a, wrappedA, err := svc.GenerateDataKey(ctx, keyID)
	require.NoError(t, err)
	b, wrappedB, err := svc.GenerateDataKey(ctx, keyID)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, wrappedA, wrappedB)
}

func TestLocalServiceDecryptTamperedBlob(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	keyID, err := svc.CreateKey(ctx, "test key")
	require.NoError(t, err)
	_, wrapped, err := svc.GenerateDataKey(ctx, keyID)
	require.NoError(t, err)

	wrapped[len(wrapped)-1] ^= 0xff
	_, err = svc.Decrypt(ctx, wrapped)
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestLocalServiceDecryptRejectsRekeyedBlob(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	keyA, err := svc.CreateKey(ctx, "key a")
	require.NoError(t, err)
	keyB, err := svc.CreateKey(ctx, "key b")
	require.NoError(t, err)

	_, wrapped, err := svc.GenerateDataKey(ctx, keyA)
	require.NoError(t, err)

	// Rewrite the key id prefix to point at another existing key. The
	// prefix is bound into the seal as additional data, so the blob stays
	// tied to the key that wrapped it.
	rawB, err := uuid.Parse(keyB)
	require.NoError(t, err)
	copy(wrapped[:keyIDSize], rawB[:])

	_, err = svc.Decrypt(ctx, wrapped)
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestLocalServiceDecryptShortBlob(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Decrypt(context.Background(), []byte("short"))
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestLocalServiceAliases(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.ResolveAlias(ctx, "alias/missing")
	assert.ErrorIs(t, err, ErrAliasNotFound)

	keyID, err := svc.CreateKey(ctx, "test key")
	require.NoError(t, err)
	require.NoError(t, svc.CreateAlias(ctx, "alias/tenant_a", keyID))

	resolved, err := svc.ResolveAlias(ctx, "alias/tenant_a")
	require.NoError(t, err)
	assert.Equal(t, keyID, resolved)

	other, err := svc.CreateKey(ctx, "second key")
	require.NoError(t, err)
	err = svc.CreateAlias(ctx, "alias/tenant_a", other)
	assert.ErrorIs(t, err, ErrAliasExists)
}

func TestClientCrossTenantUnwrapFails(t *testing.T) {
	svc := newTestService(t)
	client := NewClient(svc, zap.NewNop())
	ctx := context.Background()

	_, wrappedA, err := client.GenerateDataKey(ctx, "tenant-a")
	require.NoError(t, err)
	handleB, err := client.EnsureMasterKey(ctx, "tenant-b")
	require.NoError(t, err)
	handleA, err := client.EnsureMasterKey(ctx, "tenant-a")
	require.NoError(t, err)
	require.NotEqual(t, handleA.KeyID, handleB.KeyID)

	// Unwrapping succeeds because the blob carries its own wrapping key id.
	// Forge the prefix to point at tenant B's key and authentication fails.
	unwrapped, err := client.UnwrapDataKey(ctx, wrappedA)
	require.NoError(t, err)
	require.Len(t, unwrapped, DEKSize)

	forged := make([]byte, len(wrappedA))
	copy(forged, wrappedA)
	_, otherWrapped, err := client.GenerateDataKey(ctx, "tenant-b")
	require.NoError(t, err)
	copy(forged[:keyIDSize], otherWrapped[:keyIDSize])

	_, err = client.UnwrapDataKey(ctx, forged)
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestClientEnsureMasterKeyIdempotent(t *testing.T) {
	svc := newTestService(t)
	client := NewClient(svc, zap.NewNop())
	ctx := context.Background()

	first, err := client.EnsureMasterKey(ctx, "tenant-a")
	require.NoError(t, err)
	second, err := client.EnsureMasterKey(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A fresh client against the same service resolves the existing alias
	// instead of provisioning a new key.
	fresh := NewClient(svc, zap.NewNop())
	third, err := fresh.EnsureMasterKey(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, first.KeyID, third.KeyID)
}

func TestClientConcurrentProvisioning(t *testing.T) {
	svc := newTestService(t)
	client := NewClient(svc, zap.NewNop())
	ctx := context.Background()

	const workers = 16
	handles := make([]KeyHandle, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := client.EnsureMasterKey(ctx, "tenant-race")
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, handles[0], handles[i])
	}
}

func TestClientRaceAgainstForeignWriter(t *testing.T) {
	// Two independent clients share a service; both provision the same
	// tenant. Whoever binds the alias first wins, the loser must converge
	// on the winner's key.
	svc := newTestService(t)
	ctx := context.Background()

	a := NewClient(svc, zap.NewNop())
	b := NewClient(svc, zap.NewNop())

	ha, err := a.EnsureMasterKey(ctx, "tenant-x")
	require.NoError(t, err)
	hb, err := b.EnsureMasterKey(ctx, "tenant-x")
	require.NoError(t, err)

	assert.Equal(t, ha.KeyID, hb.KeyID)
	assert.Equal(t, ha.Alias, hb.Alias)
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}
