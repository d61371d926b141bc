// Package session seals the session record into an encrypted cookie value and
// opens it again on later requests.
package session

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/notekeeper/internal/cryptox"
)

// kdfSalt is fixed so every process derives the same key from the secret.
var kdfSalt = []byte("salt")

// Envelope encrypts opaque strings into the "hex(iv):hex(ciphertext)" form.
type Envelope struct {
	key []byte
}

func NewEnvelope(secret string) (*Envelope, error) {
	key, err := cryptox.DeriveKey([]byte(secret), kdfSalt)
	if err != nil {
		return nil, err
	}
	return &Envelope{key: key}, nil
}

func (e *Envelope) Encrypt(plaintext string) (string, error) {
	iv, ct, err := cryptox.EncryptCBC([]byte(plaintext), e.key)
	if err != nil {
		return "", fmt.Errorf("encrypt session: %w", err)
	}
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt returns false for any blob it cannot turn back into plaintext.
// It never panics on attacker-controlled input.
func (e *Envelope) Decrypt(blob string) (string, bool) {
	parts := strings.Split(blob, ":")
	if len(parts) != 2 {
		return "", false
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", false
	}

	plain, err := cryptox.DecryptCBC(iv, ct, e.key)
	if err != nil {
		return "", false
	}
	return string(plain), true
}
