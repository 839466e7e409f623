package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// JWK is the subset of RFC 7517 fields used by KMS traffic.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	K   string `json:"k,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// X25519JWK wraps an X25519 public key.
func X25519JWK(pub *[32]byte) JWK {
	return JWK{Kty: "OKP", Crv: "X25519", X: base64.RawURLEncoding.EncodeToString(pub[:])}
}

// OctetJWK wraps a symmetric key, serialized as JSON.
func OctetJWK(key []byte, kid string) (string, error) {
	raw, err := json.Marshal(JWK{Kty: "oct", K: base64.RawURLEncoding.EncodeToString(key), Kid: kid})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// PublicKey returns the X25519 public key carried in an OKP JWK.
func (j JWK) PublicKey() (*[32]byte, error) {
	if j.Kty != "OKP" || j.Crv != "X25519" {
		return nil, fmt.Errorf("unsupported jwk %s/%s", j.Kty, j.Crv)
	}
	raw, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, fmt.Errorf("decode jwk x: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid x25519 key length: %d", len(raw))
	}
	var pub [32]byte
	copy(pub[:], raw)
	return &pub, nil
}

// OctetKey extracts the 32-byte symmetric key from a serialized "oct" JWK.
func OctetKey(serialized string) ([]byte, error) {
	var j JWK
	if err := json.Unmarshal([]byte(serialized), &j); err != nil {
		return nil, fmt.Errorf("parse jwk: %w", err)
	}
	if j.Kty != "oct" {
		return nil, fmt.Errorf("unsupported jwk type %q", j.Kty)
	}
	key, err := base64.RawURLEncoding.DecodeString(j.K)
	if err != nil {
		return nil, fmt.Errorf("decode jwk k: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid symmetric key length: %d", len(key))
	}
	return key, nil
}
