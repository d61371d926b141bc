package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"golang.org/x/crypto/scrypt"
)

const (
	// KeySize selects AES-256.
	KeySize = 32

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

var (
	ErrBadKey        = errors.New("key must be 32 bytes")
	ErrBadCiphertext = errors.New("ciphertext is not a whole number of blocks")
	ErrBadPadding    = errors.New("invalid padding")
)

// DeriveKey stretches secret into a 32-byte key with scrypt (N=16384, r=8, p=1).
func DeriveKey(secret, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(secret, salt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// EncryptCBC encrypts plaintext with AES-256-CBC under a fresh random IV.
// Plaintext is PKCS#7 padded. The IV and ciphertext are returned separately.
func EncryptCBC(plaintext, key []byte) (iv, ciphertext []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, ErrBadKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	iv = common.GenerateRandByteArray(aes.BlockSize)
	padded := pad(plaintext, aes.BlockSize)

	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return iv, ciphertext, nil
}

// DecryptCBC reverses EncryptCBC. CBC carries no authentication, so a wrong
// key is only detected when the padding happens not to check out.
func DecryptCBC(iv, ciphertext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrBadKey
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes", aes.BlockSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrBadCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	return unpad(plain, aes.BlockSize)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
