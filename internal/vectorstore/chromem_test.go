package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromem(t *testing.T, dim int) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: dim,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestChromemUpsertAndSearch(t *testing.T) {
	store := newTestChromem(t, 3)
	ctx := context.Background()

	id, err := store.Upsert(ctx, "tenant-a", []float32{1, 0, 0}, map[string]string{
		MetaStoragePointer: "vault://documents/tenant-a/doc.enc",
		MetaWrappedDEK:     "deadbeef",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = store.Upsert(ctx, "tenant-a", []float32{0, 1, 0}, map[string]string{
		MetaStoragePointer: "vault://documents/tenant-a/other.enc",
		MetaWrappedDEK:     "cafef00d",
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "tenant-a", []float32{0.9, 0.1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, "vault://documents/tenant-a/doc.enc", results[0].Metadata[MetaStoragePointer])
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestChromemSearchFreshTenant(t *testing.T) {
	store := newTestChromem(t, 3)

	results, err := store.Search(context.Background(), "never-seen", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemTenantIsolation(t *testing.T) {
	store := newTestChromem(t, 3)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "tenant-a", []float32{1, 0, 0}, map[string]string{"owner": "a"})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "tenant-b", []float32{1, 0, 0}, map[string]string{"owner": "b"})
	require.NoError(t, err)

	results, err := store.Search(ctx, "tenant-a", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Metadata["owner"])
}

func TestChromemDimensionMismatch(t *testing.T) {
	store := newTestChromem(t, 3)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "tenant-a", []float32{1, 0}, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Search(ctx, "tenant-a", []float32{1, 0, 0, 0}, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemKLargerThanPartition(t *testing.T) {
	store := newTestChromem(t, 3)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "tenant-a", []float32{0, 0, 1}, nil)
	require.NoError(t, err)

	results, err := store.Search(ctx, "tenant-a", []float32{0, 0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemListPartitions(t *testing.T) {
	store := newTestChromem(t, 3)
	ctx := context.Background()

	require.NoError(t, store.EnsurePartition(ctx, "Acme Corp"))
	require.NoError(t, store.EnsurePartition(ctx, "tenant-b"))

	tenants, err := store.ListPartitions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme_corp", "tenant_b"}, tenants)
}

func TestChromemPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 3}, zap.NewNop())
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "tenant-a", []float32{1, 0, 0}, map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 3}, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search(ctx, "tenant-a", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v", results[0].Metadata["k"])
}

func TestNewStoreFactory(t *testing.T) {
	t.Run("chromem", func(t *testing.T) {
		store, err := NewStore(FactoryConfig{
			Provider: ProviderChromem,
			Chromem:  ChromemConfig{Path: t.TempDir(), VectorSize: 8},
		}, zap.NewNop())
		require.NoError(t, err)
		defer store.Close()
		_, ok := store.(*ChromemStore)
		assert.True(t, ok)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewStore(FactoryConfig{Provider: "pinecone"}, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
