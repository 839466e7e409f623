package kms

import (
	"sync"
)

// Key is a space encryption key: its KMS locator and its serialized JWK.
type Key struct {
	URI string
	JWK string
}

// EncryptionKey tracks the key state of a single space.
type EncryptionKey struct {
	SpaceID string

	mu           sync.Mutex
	url          string
	material     string
	participants []string
	seen         map[string]struct{}
}

func newEncryptionKey(spaceID string) *EncryptionKey {
	return &EncryptionKey{SpaceID: spaceID, seen: make(map[string]struct{})}
}

// URL returns the cached encryption key URL, empty when unknown.
func (k *EncryptionKey) URL() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.url
}

// Material returns the cached key material, empty when not fetched.
func (k *EncryptionKey) Material() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.material
}

// Cached returns the key when both URL and material are known.
func (k *EncryptionKey) Cached() (Key, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.url == "" || k.material == "" {
		return Key{}, false
	}
	return Key{URI: k.url, JWK: k.material}, true
}

// TryRefresh adopts newURL when it differs from the cached URL and drops
// cached material. It reports whether anything changed.
func (k *EncryptionKey) TryRefresh(newURL string) bool {
	if newURL == "" {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if newURL == k.url {
		return false
	}
	k.url = newURL
	k.material = ""
	return true
}

func (k *EncryptionKey) setURL(url string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.url == "" {
		k.url = url
	}
}

// store caches material for url. Material for a URL the space has since
// moved away from is ignored.
func (k *EncryptionKey) store(key Key) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.url == "" {
		k.url = key.URI
	}
	if k.url == key.URI {
		k.material = key.JWK
	}
}

// AddParticipants accumulates participant ids for key creation.
func (k *EncryptionKey) AddParticipants(ids ...string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := k.seen[id]; ok {
			continue
		}
		k.seen[id] = struct{}{}
		k.participants = append(k.participants, id)
	}
}

// ParticipantIDs returns the accumulated participant ids in insertion order.
func (k *EncryptionKey) ParticipantIDs() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, len(k.participants))
	copy(out, k.participants)
	return out
}

// KeyRing owns one EncryptionKey per space and a material cache per URL.
type KeyRing struct {
	mu     sync.Mutex
	spaces map[string]*EncryptionKey
	byURL  map[string]Key
}

// NewKeyRing returns an empty ring.
func NewKeyRing() *KeyRing {
	return &KeyRing{
		spaces: make(map[string]*EncryptionKey),
		byURL:  make(map[string]Key),
	}
}

// Space returns the EncryptionKey for spaceID, creating it on first use.
func (r *KeyRing) Space(spaceID string) *EncryptionKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.spaces[spaceID]
	if !ok {
		k = newEncryptionKey(spaceID)
		r.spaces[spaceID] = k
	}
	return k
}

// Lookup returns cached material for a key URL.
func (r *KeyRing) Lookup(url string) (Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byURL[url]
	return k, ok
}

// Store caches material under its URL.
func (r *KeyRing) Store(key Key) {
	if key.URI == "" || key.JWK == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byURL[key.URI] = key
}

// Forget drops cached material for url.
func (r *KeyRing) Forget(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byURL, url)
}
