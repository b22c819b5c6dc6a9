package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecretCipher_WithoutKeyName(t *testing.T) {
	cipher, err := NewSecretCipher(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, PlainCipher{}, cipher)

	ciphertext, err := cipher.Encrypt(context.Background(), []byte("secret"))
	require.NoError(t, err)
	plaintext, err := cipher.Decrypt(context.Background(), ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(plaintext))
	assert.NoError(t, cipher.Close())
}

func TestChecksum(t *testing.T) {
	// CRC32C のチェック値
	assert.Equal(t, int64(0xE3069283), checksum([]byte("123456789")).GetValue())
	assert.Equal(t, int64(0), checksum(nil).GetValue())
}
