package cryptox

import (
	"bytes"
	"crypto/aes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	key1, err := DeriveKey([]byte("secret-password"), []byte("salt"))
	require.NoError(t, err)
	key2, err := DeriveKey([]byte("secret-password"), []byte("salt"))
	require.NoError(t, err)

	assert.Len(t, key1, KeySize)
	assert.Equal(t, key1, key2)
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	key1, err := DeriveKey([]byte("secret-password"), []byte("salt"))
	require.NoError(t, err)
	key2, err := DeriveKey([]byte("other-password"), []byte("salt"))
	require.NoError(t, err)

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different keys for different secrets, got same")
	}
}

func TestEncryptDecryptCBC_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)

	for _, msg := range []string{"", "a", "exactly-16-bytes", `{"user":{"id":"1"}}`} {
		iv, ct, err := EncryptCBC([]byte(msg), key)
		require.NoError(t, err)
		assert.Len(t, iv, aes.BlockSize)
		assert.Zero(t, len(ct)%aes.BlockSize)
		assert.Greater(t, len(ct), len(msg))

		plain, err := DecryptCBC(iv, ct, key)
		require.NoError(t, err)
		assert.Equal(t, msg, string(plain))
	}
}

func TestEncryptCBC_FreshIV(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)

	iv1, ct1, err := EncryptCBC([]byte("same"), key)
	require.NoError(t, err)
	iv2, ct2, err := EncryptCBC([]byte("same"), key)
	require.NoError(t, err)

	assert.NotEqual(t, hex.EncodeToString(iv1), hex.EncodeToString(iv2))
	assert.NotEqual(t, ct1, ct2)
}

func TestCBC_BadInputs(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	iv := bytes.Repeat([]byte{2}, aes.BlockSize)

	_, _, err := EncryptCBC([]byte("x"), []byte("short"))
	assert.ErrorIs(t, err, ErrBadKey)

	_, err = DecryptCBC(iv, make([]byte, 15), key)
	assert.ErrorIs(t, err, ErrBadCiphertext)

	_, err = DecryptCBC(iv, nil, key)
	assert.ErrorIs(t, err, ErrBadCiphertext)

	_, err = DecryptCBC(iv[:8], make([]byte, 16), key)
	assert.Error(t, err)
}

func TestUnpad(t *testing.T) {
	good := append([]byte("abc"), bytes.Repeat([]byte{13}, 13)...)
	out, err := unpad(good, 16)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	cases := map[string][]byte{
		"zero":         append(bytes.Repeat([]byte{'a'}, 15), 0),
		"too large":    append(bytes.Repeat([]byte{'a'}, 15), 17),
		"inconsistent": append(append(bytes.Repeat([]byte{'a'}, 13), 1, 2), 3),
		"empty":        {},
	}
	for name, in := range cases {
		_, err := unpad(in, 16)
		assert.ErrorIs(t, err, ErrBadPadding, name)
	}
}
