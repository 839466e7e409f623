package kms

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/bhandras/delight/rtc/internal/crypto"
	"github.com/bhandras/delight/rtc/internal/metrics"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

// HandleMessages processes KMS replies delivered by the push channel.
func (n *Negotiator) HandleMessages(messages []string) {
	for _, msg := range messages {
		n.handleMessage(msg)
	}
}

func (n *Negotiator) handleMessage(raw string) {
	if n.handleEphemeralResponse(raw) {
		return
	}

	n.mu.Lock()
	key := n.ephemeral
	n.mu.Unlock()
	if key == nil {
		metrics.KMSResponse("unexpected")
		logger.Warnf("[kms] dropping message: no ephemeral key")
		return
	}

	plain, err := crypto.OpenString(raw, key)
	if err != nil {
		metrics.KMSResponse("undecryptable")
		logger.Warnf("[kms] dropping undecryptable message: %v", err)
		return
	}
	var resp response
	if err := json.Unmarshal(plain, &resp); err != nil {
		metrics.KMSResponse("malformed")
		logger.Warnf("[kms] dropping malformed message: %v", err)
		return
	}
	n.dispatch(resp)
}

// handleEphemeralResponse completes the outstanding ECDHE request if raw is
// its reply.
func (n *Negotiator) handleEphemeralResponse(raw string) bool {
	n.mu.Lock()
	req := n.ephemeralReq
	n.mu.Unlock()
	if req == nil {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return false
	}
	var resp ephemeralResponse
	if err := json.Unmarshal(decoded, &resp); err != nil || resp.RequestID != req.id {
		return false
	}

	metrics.KMSResponse("ecdhe")
	var result error
	serverKey, err := resp.Key.JWK.PublicKey()
	if err == nil {
		var shared []byte
		shared, err = crypto.DeriveSharedKey(req.priv, serverKey, crypto.EphemeralInfo)
		if err == nil {
			n.mu.Lock()
			n.ephemeral = shared
			n.mu.Unlock()
			logger.Infof("[kms] ephemeral key established")
		}
	}
	if err != nil {
		result = fmt.Errorf("%w: %w: %v", ErrEphemeralKeyFetchFailed, ErrMalformedResponse, err)
	}

	n.mu.Lock()
	if n.ephemeralReq == req {
		n.ephemeralReq = nil
	}
	n.mu.Unlock()
	req.done <- result
	return true
}

func (n *Negotiator) dispatch(resp response) {
	switch {
	case resp.Status >= 400:
		metrics.KMSResponse("rejected")
		n.failRequest(resp.RequestID, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.Status, resp.Reason))
	case resp.Key != nil:
		metrics.KMSResponse("key")
		n.resolveRetrieve(resp)
	case len(resp.Keys) > 0:
		metrics.KMSResponse("keys")
		n.resolveCreate(resp)
	case resp.Resource != nil:
		metrics.KMSResponse("resource")
		logger.Debugf("[kms] resource %s created", resp.Resource.URI)
	default:
		metrics.KMSResponse("malformed")
		n.failRequest(resp.RequestID, ErrMalformedResponse)
	}
}

func (n *Negotiator) failRequest(requestID string, err error) {
	if keyURL, ok := n.retrieves.Lookup(requestID); ok {
		n.retrieves.FailAll(keyURL, err)
		return
	}
	if spaceID, ok := n.creates.Lookup(requestID); ok {
		n.creates.FailAll(spaceID, err)
		return
	}
	logger.Warnf("[kms] unmatched failure for request %q: %v", requestID, err)
}

// resolveRetrieve hands the key to the oldest waiter for its URL. Waiters
// that joined the same outstanding request are then served from the ring,
// still in registration order.
func (n *Negotiator) resolveRetrieve(resp response) {
	key := resp.Key.key()
	if key.URI == "" || key.JWK == "" {
		n.failRequest(resp.RequestID, ErrMalformedResponse)
		return
	}
	n.ring.Store(key)

	keyURL := key.URI
	if bound, ok := n.retrieves.Lookup(resp.RequestID); ok {
		keyURL = bound
	}
	n.retrieves.UnbindKey(keyURL)

	if !n.retrieves.ResolveOldest(keyURL, key) {
		logger.Debugf("[kms] key %s arrived with no waiter", keyURL)
		return
	}
	if cached, ok := n.ring.Lookup(key.URI); ok {
		key = cached
	}
	if joined := n.retrieves.ResolveAll(keyURL, key); joined > 0 {
		logger.Debugf("[kms] key %s shared with %d joined waiters", keyURL, joined)
	}
}

// resolveCreate matches a key creation reply to the space that asked for
// it, by request id or else by oldest registration.
func (n *Negotiator) resolveCreate(resp response) {
	key := resp.Keys[0].key()
	if key.URI == "" || key.JWK == "" {
		n.failRequest(resp.RequestID, ErrMalformedResponse)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	spaceID, ok := n.creates.Lookup(resp.RequestID)
	if !ok || n.finishing[spaceID] {
		ok = false
		for _, candidate := range n.creates.Keys() {
			if !n.finishing[candidate] {
				spaceID, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		logger.Warnf("[kms] created key %s matches no pending space", key.URI)
		return
	}
	n.creates.UnbindKey(spaceID)
	n.finishing[spaceID] = true
	go n.finishCreate(spaceID, key)
}
