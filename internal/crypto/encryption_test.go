// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestEncryptDecrypt_Success(t *testing.T) {
	c := testCipher(t)

	tests := []struct {
		name string
		text string
	}{
		{"simple text", "prefers dark roast coffee in the morning"},
		{"empty string", ""},
		{"special chars", "note!@#$%^&*()_+-={}[]|\\:\";<>?,./"},
		{"unicode", "träningspass kl 06:00 üèÉ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := c.Encrypt([]byte(tt.text))
			require.NoError(t, err)
			assert.NotEmpty(t, encrypted)
			assert.NotEqual(t, tt.text, encrypted)

			decrypted, err := c.Decrypt(encrypted)
			require.NoError(t, err)
			assert.Equal(t, tt.text, string(decrypted))
		})
	}
}

func TestNewCipher_InvalidKey(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
	}{
		{"too short", 8},
		{"odd size", 15},
		{"invalid size", 31},
		{"too long", 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCipher(make([]byte, tt.keySize))
			assert.Equal(t, ErrInvalidKey, err)
			assert.Nil(t, c)
		})
	}
}

func TestNewCipher_ValidKeySizes(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
	}{
		{"16 bytes (AES-128)", 16},
		{"24 bytes (AES-192)", 24},
		{"32 bytes (AES-256)", 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keySize)
			for i := range key {
				key[i] = byte(i)
			}

			c, err := NewCipher(key)
			require.NoError(t, err)

			encrypted, err := c.Encrypt([]byte("some memory"))
			require.NoError(t, err)

			decrypted, err := c.Decrypt(encrypted)
			require.NoError(t, err)
			assert.Equal(t, "some memory", string(decrypted))
		})
	}
}

func TestNewCipherFromString(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	c, err := NewCipherFromString(KeyToString(key))
	require.NoError(t, err)

	encrypted, err := c.Encrypt([]byte("some memory"))
	require.NoError(t, err)

	// A cipher built from the raw key opens the same ciphertext
	raw, err := NewCipher(key)
	require.NoError(t, err)
	decrypted, err := raw.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "some memory", string(decrypted))
}

func TestNewCipherFromString_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "not-base64!@#"},
		{"wrong size", KeyToString(make([]byte, 8))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCipherFromString(tt.encoded)
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c1 := testCipher(t)
	c2 := testCipher(t)

	encrypted, err := c1.Encrypt([]byte("some memory"))
	require.NoError(t, err)

	decrypted, err := c2.Decrypt(encrypted)
	assert.Error(t, err)
	assert.Empty(t, decrypted)
}

func TestDecrypt_InvalidCiphertext(t *testing.T) {
	c := testCipher(t)

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "not-base64!@#"},
		{"empty", ""},
		{"too short", "AA=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decrypted, err := c.Decrypt(tt.ciphertext)
			assert.Error(t, err)
			assert.Empty(t, decrypted)
		})
	}
}

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key1, 32)

	key2, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key2, 32)

	// Keys should be different (extremely unlikely to be same)
	assert.NotEqual(t, key1, key2)
}

func TestEncrypt_DifferentNonces(t *testing.T) {
	c := testCipher(t)
	text := "some memory"

	encrypted1, err := c.Encrypt([]byte(text))
	require.NoError(t, err)

	encrypted2, err := c.Encrypt([]byte(text))
	require.NoError(t, err)

	// Encrypted values should be different (due to different nonces)
	assert.NotEqual(t, encrypted1, encrypted2)

	decrypted1, _ := c.Decrypt(encrypted1)
	decrypted2, _ := c.Decrypt(encrypted2)
	assert.Equal(t, text, string(decrypted1))
	assert.Equal(t, text, string(decrypted2))
}

func TestEncrypt_LongText(t *testing.T) {
	c := testCipher(t)

	longText := strings.Repeat("abcdefghijklmnopqrstuvwxyz0123456789", 100)

	encrypted, err := c.Encrypt([]byte(longText))
	require.NoError(t, err)

	decrypted, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, longText, string(decrypted))
}
