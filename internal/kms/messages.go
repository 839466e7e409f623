package kms

import (
	"bytes"
	"encoding/json"

	"github.com/bhandras/delight/rtc/internal/crypto"
)

// KMS request methods.
const (
	methodCreate   = "create"
	methodRetrieve = "retrieve"
)

const (
	keysURI      = "/keys"
	resourcesURI = "/resources"
	ecdheSuffix  = "/ecdhe"

	destinationUnused = "unused"
)

type credential struct {
	UserID string `json:"userId"`
	Bearer string `json:"bearer"`
}

type requestClient struct {
	ClientID   string     `json:"clientId"`
	Credential credential `json:"credential"`
}

// request is the plaintext of a KMS message.
type request struct {
	Client    requestClient `json:"client"`
	RequestID string        `json:"requestId"`
	Method    string        `json:"method"`
	URI       string        `json:"uri"`
	Count     int           `json:"count,omitempty"`
	UserIDs   []string      `json:"userIds,omitempty"`
	KeyURIs   []string      `json:"keyUris,omitempty"`
	JWK       *crypto.JWK   `json:"jwk,omitempty"`
}

type responseKey struct {
	URI string          `json:"uri"`
	JWK json.RawMessage `json:"jwk"`
}

// material returns the JWK as a string. Servers send it either as a JSON
// string or as an inline object; both are kept in serialized form.
func (k responseKey) material() string {
	raw := bytes.TrimSpace(k.JWK)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

func (k responseKey) key() Key {
	return Key{URI: k.URI, JWK: k.material()}
}

type responseResource struct {
	URI string `json:"uri"`
}

// response is the decrypted body of a KMS reply.
type response struct {
	RequestID string            `json:"requestId"`
	Status    int               `json:"status,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Key       *responseKey      `json:"key,omitempty"`
	Keys      []responseKey     `json:"keys,omitempty"`
	Resource  *responseResource `json:"resource,omitempty"`
}

// ephemeralResponse is the plaintext reply to an ECDHE request.
type ephemeralResponse struct {
	RequestID string `json:"requestId"`
	Key       struct {
		JWK crypto.JWK `json:"jwk"`
	} `json:"key"`
}
