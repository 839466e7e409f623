package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// EphemeralInfo is the HKDF info string binding derived keys to KMS traffic.
const EphemeralInfo = "kms-ephemeral"

// DeriveSharedKey runs X25519 between priv and peer and expands the shared
// secret into a 32-byte key with HKDF-SHA256.
func DeriveSharedKey(priv *[32]byte, peer *[32]byte, info string) ([]byte, error) {
	shared, err := curve25519.X25519(priv[:], peer[:])
	if err != nil {
		return nil, fmt.Errorf("x25519: %w", err)
	}

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, shared, nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}
