package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	envelopeVersion = 0
	gcmNonceSize    = 12
	gcmTagSize      = 16
)

// Seal encrypts plaintext with AES-256-GCM.
// Format: [version (1 byte)][nonce (12 bytes)][ciphertext][auth tag (16 bytes)]
func Seal(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 1+gcmNonceSize+len(ciphertext))
	out[0] = envelopeVersion
	copy(out[1:1+gcmNonceSize], nonce)
	copy(out[1+gcmNonceSize:], ciphertext)
	return out, nil
}

// Open decrypts an envelope produced by Seal.
func Open(envelope []byte, key []byte) ([]byte, error) {
	if len(envelope) < 1+gcmNonceSize+gcmTagSize {
		return nil, fmt.Errorf("encrypted data too short")
	}
	if envelope[0] != envelopeVersion {
		return nil, fmt.Errorf("unsupported encryption version: %d", envelope[0])
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, envelope[1:1+gcmNonceSize], envelope[1+gcmNonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// SealString encrypts plaintext and returns the envelope base64-encoded.
func SealString(plaintext []byte, key []byte) (string, error) {
	envelope, err := Seal(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// OpenString decodes a base64 envelope and decrypts it.
func OpenString(encoded string, key []byte) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return Open(envelope, key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("data key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
