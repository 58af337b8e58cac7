package envelope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/kms"
)

func newTestCodec(t *testing.T) (*Codec, *kms.Client) {
	t.Helper()
	svc, err := kms.NewLocalService(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	client := kms.NewClient(svc, zap.NewNop())
	return NewCodec(client), client
}

func TestCodecRoundTrip(t *testing.T) {
	codec, _ := newTestCodec(t)
	ctx := context.Background()

	plaintext := []byte("the <PER> works at <ORG> in <LOC>")
	ciphertext, wrapped, err := codec.Encrypt(ctx, "tenant-a", plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "<PER>")

	got, err := codec.Decrypt(ctx, ciphertext, wrapped)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestCodecFreshDEKPerEncrypt(t *testing.T) {
	codec, _ := newTestCodec(t)
	ctx := context.Background()

	payload := []byte("same payload")
	ct1, dek1, err := codec.Encrypt(ctx, "tenant-a", payload)
	require.NoError(t, err)
	ct2, dek2, err := codec.Encrypt(ctx, "tenant-a", payload)
	require.NoError(t, err)

	assert.NotEqual(t, dek1, dek2)
	assert.NotEqual(t, ct1, ct2)
}

func TestCodecMismatchedDEK(t *testing.T) {
	codec, _ := newTestCodec(t)
	ctx := context.Background()

	ct1, _, err := codec.Encrypt(ctx, "tenant-a", []byte("document one"))
	require.NoError(t, err)
	_, dek2, err := codec.Encrypt(ctx, "tenant-a", []byte("document two"))
	require.NoError(t, err)

	// dek2 unwraps fine (same tenant) but does not authenticate ct1.
	_, err = codec.Decrypt(ctx, ct1, dek2)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCodecForeignTenantDEK(t *testing.T) {
	// Two codecs over independent key services stand in for a blob that
	// reaches a service which never provisioned its wrapping key.
	codecA, _ := newTestCodec(t)
	codecB, _ := newTestCodec(t)
	ctx := context.Background()

	ciphertext, wrapped, err := codecA.Encrypt(ctx, "tenant-a", []byte("secret"))
	require.NoError(t, err)

	_, err = codecB.Decrypt(ctx, ciphertext, wrapped)
	assert.ErrorIs(t, err, kms.ErrKeyUnavailable)
}

func TestCodecTamperedCiphertext(t *testing.T) {
	codec, _ := newTestCodec(t)
	ctx := context.Background()

	ciphertext, wrapped, err := codec.Encrypt(ctx, "tenant-a", []byte("payload"))
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0x01
	_, err = codec.Decrypt(ctx, ciphertext, wrapped)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCodecShortCiphertext(t *testing.T) {
	codec, _ := newTestCodec(t)
	ctx := context.Background()

	_, wrapped, err := codec.Encrypt(ctx, "tenant-a", []byte("payload"))
	require.NoError(t, err)

	_, err = codec.Decrypt(ctx, []byte{0x01, 0x02}, wrapped)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCodecEmptyPlaintext(t *testing.T) {
	codec, _ := newTestCodec(t)
	ctx := context.Background()

	ciphertext, wrapped, err := codec.Encrypt(ctx, "tenant-a", []byte{})
	require.NoError(t, err)

	got, err := codec.Decrypt(ctx, ciphertext, wrapped)
	require.NoError(t, err)
	assert.Empty(t, got)
}
