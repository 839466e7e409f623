package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// SealBox encrypts data for a recipient's public key with an anonymous sender
// key. Format: [sender public key (32 bytes)][nonce (24 bytes)][ciphertext]
func SealBox(data []byte, recipientPublicKey *[32]byte) ([]byte, error) {
	senderPublic, senderPrivate, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sender keypair: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	encrypted := box.Seal(nil, data, &nonce, recipientPublicKey, senderPrivate)

	out := make([]byte, 32+24+len(encrypted))
	copy(out[0:32], senderPublic[:])
	copy(out[32:56], nonce[:])
	copy(out[56:], encrypted)
	return out, nil
}

// OpenBox decrypts data produced by SealBox.
func OpenBox(encrypted []byte, recipientSecretKey *[32]byte) ([]byte, error) {
	if len(encrypted) < 32+24 {
		return nil, fmt.Errorf("encrypted data too short")
	}

	var senderPublic [32]byte
	copy(senderPublic[:], encrypted[0:32])
	var nonce [24]byte
	copy(nonce[:], encrypted[32:56])

	decrypted, ok := box.Open(nil, encrypted[56:], &nonce, &senderPublic, recipientSecretKey)
	if !ok {
		return nil, fmt.Errorf("decryption failed")
	}
	return decrypted, nil
}

// GenerateBoxKeyPair generates a new X25519 key pair.
func GenerateBoxKeyPair() (publicKey *[32]byte, privateKey *[32]byte, err error) {
	publicKey, privateKey, err = box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate box keypair: %w", err)
	}
	return publicKey, privateKey, nil
}
