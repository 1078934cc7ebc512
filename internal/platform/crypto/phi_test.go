package crypto

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0xAB}, 32)
}

func TestNewFieldEncryptor_KeyLength(t *testing.T) {
	if _, err := NewFieldEncryptor([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := NewFieldEncryptor(testKey()); err != nil {
		t.Errorf("unexpected error for 32-byte key: %v", err)
	}
}

func TestFieldEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewFieldEncryptor(testKey())
	if err != nil {
		t.Fatalf("NewFieldEncryptor() error: %v", err)
	}

	inputs := []string{"123-45-6789", "", "a", strings.Repeat("x", 4096), "unicode: héllo 世界"}
	for _, in := range inputs {
		ct, err := enc.Encrypt(in)
		if err != nil {
			t.Fatalf("Encrypt(%q) error: %v", in, err)
		}
		out, err := enc.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt() error: %v", err)
		}
		if out != in {
			t.Errorf("round trip mismatch: got %q, want %q", out, in)
		}
	}
}

func TestFieldEncryptor_FreshNoncePerValue(t *testing.T) {
	enc, err := NewFieldEncryptor(testKey())
	if err != nil {
		t.Fatalf("NewFieldEncryptor() error: %v", err)
	}

	c1, err := enc.Encrypt("123-45-6789")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	c2, err := enc.Encrypt("123-45-6789")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if c1 == c2 {
		t.Error("expected identical plaintexts to produce distinct ciphertexts")
	}
}

func TestDecryptOrRedact_CorruptedCiphertext(t *testing.T) {
	enc, err := NewFieldEncryptor(testKey())
	if err != nil {
		t.Fatalf("NewFieldEncryptor() error: %v", err)
	}

	cases := []string{
		"not base64 !!!",
		base64.StdEncoding.EncodeToString([]byte("too short")),
	}

	// Flip a byte in a valid ciphertext
	ct, err := enc.Encrypt("123-45-6789")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0xFF
	cases = append(cases, base64.StdEncoding.EncodeToString(raw))

	for _, c := range cases {
		if got := enc.DecryptOrRedact(c); got != RedactedPlaceholder {
			t.Errorf("DecryptOrRedact(%q) = %q, want redacted placeholder", c, got)
		}
	}
}

func TestDecryptOrRedact_EmptyAndValid(t *testing.T) {
	enc, err := NewFieldEncryptor(testKey())
	if err != nil {
		t.Fatalf("NewFieldEncryptor() error: %v", err)
	}

	if got := enc.DecryptOrRedact(""); got != "" {
		t.Errorf("DecryptOrRedact(\"\") = %q, want empty string", got)
	}

	ct, err := enc.Encrypt("123-45-6789")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if got := enc.DecryptOrRedact(ct); got != "123-45-6789" {
		t.Errorf("DecryptOrRedact(valid) = %q, want plaintext", got)
	}
}

func TestFieldEncryptor_WrongKey(t *testing.T) {
	enc1, _ := NewFieldEncryptor(testKey())
	enc2, _ := NewFieldEncryptor(bytes.Repeat([]byte{0xCD}, 32))

	ct, err := enc1.Encrypt("123-45-6789")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if _, err := enc2.Decrypt(ct); err == nil {
		t.Error("expected decryption with the wrong key to fail")
	}
	if got := enc2.DecryptOrRedact(ct); got != RedactedPlaceholder {
		t.Errorf("DecryptOrRedact with wrong key = %q, want redacted placeholder", got)
	}
}
