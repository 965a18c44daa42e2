package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0000000000000000000000000000000000000000000000000000000000000001"

func TestNewCipher(t *testing.T) {
	t.Run("accepts a 256-bit hex key", func(t *testing.T) {
		c, err := NewCipher(testKey)

		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("rejects short keys", func(t *testing.T) {
		_, err := NewCipher("deadbeef")

		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("rejects non-hex keys", func(t *testing.T) {
		_, err := NewCipher(strings.Repeat("zz", 32))

		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("whsec_abc123")
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "whsec_abc123")

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "whsec_abc123", plaintext)
}

func TestCipherNoncePerValue(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	first, err := c.Encrypt("same secret")
	require.NoError(t, err)
	second, err := c.Encrypt("same secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCipherDecryptFailures(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	t.Run("tampered ciphertext fails authentication", func(t *testing.T) {
		ciphertext, err := c.Encrypt("api-key-value")
		require.NoError(t, err)
		ciphertext[len(ciphertext)-1] ^= 0x01

		_, err = c.Decrypt(ciphertext)

		assert.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("truncated ciphertext is rejected", func(t *testing.T) {
		_, err := c.Decrypt([]byte{0x01, 0x02})

		assert.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("wrong key fails authentication", func(t *testing.T) {
		otherKey := hex.EncodeToString([]byte(strings.Repeat("k", 32)))
		other, err := NewCipher(otherKey)
		require.NoError(t, err)

		ciphertext, err := c.Encrypt("api-key-value")
		require.NoError(t, err)

		_, err = other.Decrypt(ciphertext)

		assert.ErrorIs(t, err, ErrDecryptFailed)
	})
}
