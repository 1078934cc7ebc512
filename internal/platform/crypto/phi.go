package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// RedactedPlaceholder is returned in place of a PHI field whose ciphertext
// cannot be decrypted. Reads must degrade to this value, never error out.
const RedactedPlaceholder = "***ENCRYPTED***"

// FieldEncryptor provides AES-256-GCM encryption for designated PHI fields
// (SSN and similar) before they are persisted. A random nonce is generated
// per value and prepended to the ciphertext, so identical plaintexts never
// produce identical stored values.
type FieldEncryptor struct {
	aead cipher.AEAD
}

// NewFieldEncryptor creates a FieldEncryptor with the given 32-byte AES-256 key.
func NewFieldEncryptor(key []byte) (*FieldEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("field encryptor: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("field encryptor: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("field encryptor: create GCM: %w", err)
	}

	return &FieldEncryptor{aead: aead}, nil
}

// Encrypt encrypts the plaintext and returns a base64-encoded ciphertext with
// the nonce prepended.
func (e *FieldEncryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("field encrypt: generate nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, so the result is nonce + ciphertext.
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decodes the base64 ciphertext, extracts the prepended nonce, and
// decrypts the remainder.
func (e *FieldEncryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("field decrypt: base64 decode: %w", err)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("field decrypt: ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("field decrypt: %w", err)
	}
	return string(plaintext), nil
}

// DecryptOrRedact decrypts a stored PHI field for display. On any failure it
// returns RedactedPlaceholder instead of an error so that a corrupted or
// re-keyed field never breaks a record read.
func (e *FieldEncryptor) DecryptOrRedact(ciphertext string) string {
	if ciphertext == "" {
		return ""
	}
	plaintext, err := e.Decrypt(ciphertext)
	if err != nil {
		return RedactedPlaceholder
	}
	return plaintext
}
