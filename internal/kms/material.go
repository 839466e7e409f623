package kms

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bhandras/delight/rtc/internal/pending"
	"github.com/bhandras/delight/rtc/internal/protocol/wire"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

type keyResult struct {
	key Key
	err error
}

// Material returns the key for spaceID, fetching or creating it as needed.
func (n *Negotiator) Material(ctx context.Context, spaceID string) (Key, error) {
	ek := n.ring.Space(spaceID)
	if key, ok := ek.Cached(); ok {
		return key, nil
	}
	keyURL, err := n.EncryptionURL(ctx, spaceID)
	if err != nil {
		return Key{}, err
	}
	return n.RequestSpaceKeyMaterial(ctx, spaceID, keyURL)
}

// EncryptionURL returns the key URL of spaceID. An empty URL means the space
// has no key yet. When the space carries a KMS resource its participant ids
// are accumulated so the created key can be granted to them.
func (n *Negotiator) EncryptionURL(ctx context.Context, spaceID string) (string, error) {
	ek := n.ring.Space(spaceID)
	if keyURL := ek.URL(); keyURL != "" {
		return keyURL, nil
	}

	var conv wire.Conversation
	path := "conversations/" + url.PathEscape(spaceID) + "?participantsLimit=-1"
	if err := transport.Get(ctx, n.doer, path, &conv); err != nil {
		return "", fmt.Errorf("fetch conversation %s: %w", spaceID, err)
	}
	if conv.DefaultActivityEncryptionKeyURL != "" {
		ek.setURL(conv.DefaultActivityEncryptionKeyURL)
		return ek.URL(), nil
	}

	if conv.KMSResourceObjectURL == "" {
		logger.Debugf("[kms] space %s has no key and no kms resource", spaceID)
		return "", nil
	}
	ids := make([]string, 0, len(conv.Participants.Items))
	for _, p := range conv.Participants.Items {
		ids = append(ids, p.ID)
	}
	ek.AddParticipants(ids...)
	logger.Debugf("[kms] space %s has resource %s but no key", spaceID, conv.KMSResourceObjectURL)
	return "", nil
}

// TryRefresh records a server-advertised key URL for spaceID. Cached
// material is dropped when the URL changed.
func (n *Negotiator) TryRefresh(spaceID, newURL string) bool {
	changed := n.ring.Space(spaceID).TryRefresh(newURL)
	if changed {
		logger.Infof("[kms] space %s re-keyed to %s", spaceID, newURL)
	}
	return changed
}

// RequestSpaceKeyMaterial retrieves the key at keyURL or, when keyURL is
// empty, creates a new key for spaceID.
func (n *Negotiator) RequestSpaceKeyMaterial(ctx context.Context, spaceID, keyURL string) (Key, error) {
	if keyURL == "" {
		return n.create(ctx, spaceID)
	}
	if key, ok := n.ring.Lookup(keyURL); ok {
		n.ring.Space(spaceID).store(key)
		return key, nil
	}
	key, err := n.retrieve(ctx, keyURL)
	if err != nil {
		return Key{}, err
	}
	n.ring.Space(spaceID).store(key)
	return key, nil
}

// Retrieve fetches material for keyURL without a space. Used to decrypt
// content whose key differs from the space default.
func (n *Negotiator) Retrieve(ctx context.Context, keyURL string) (Key, error) {
	if key, ok := n.ring.Lookup(keyURL); ok {
		return key, nil
	}
	return n.retrieve(ctx, keyURL)
}

func (n *Negotiator) retrieve(ctx context.Context, keyURL string) (Key, error) {
	done := make(chan keyResult, 1)
	id, first := n.retrieves.Add(keyURL, func(k Key, err error) {
		done <- keyResult{key: k, err: err}
	})
	if first {
		go n.sendRetrieve(ctx, keyURL)
	}
	return wait(ctx, done, func() { n.retrieves.Remove(keyURL, id) })
}

func (n *Negotiator) sendRetrieve(ctx context.Context, keyURL string) {
	if n.retrieves.Len(keyURL) == 0 {
		return
	}
	wctx, cancel := n.wireContext(ctx)
	defer cancel()

	err := n.send(wctx, methodRetrieve, methodRetrieve, keyURL, nil, func(id string) {
		n.retrieves.Bind(id, keyURL)
		n.armTimeout(n.retrieves, keyURL, id)
	})
	if err != nil {
		logger.Warnf("[kms] retrieve %s failed: %v", keyURL, err)
		n.retrieves.FailAll(keyURL, err)
	}
}

func (n *Negotiator) create(ctx context.Context, spaceID string) (Key, error) {
	done := make(chan keyResult, 1)
	id, first := n.creates.Add(spaceID, func(k Key, err error) {
		done <- keyResult{key: k, err: err}
	})
	if first {
		go n.sendCreate(ctx, spaceID)
	}
	return wait(ctx, done, func() { n.creates.Remove(spaceID, id) })
}

func (n *Negotiator) sendCreate(ctx context.Context, spaceID string) {
	wctx, cancel := n.wireContext(ctx)
	defer cancel()

	fill := func(r *request) { r.Count = 1 }
	err := n.send(wctx, "create-key", methodCreate, keysURI, fill, func(id string) {
		n.creates.Bind(id, spaceID)
		n.armTimeout(n.creates, spaceID, id)
	})
	if err != nil {
		logger.Warnf("[kms] create key for %s failed: %v", spaceID, err)
		n.creates.FailAll(spaceID, err)
	}
}

// finishCreate grants a freshly created key to the space participants,
// announces it as the space default and then resolves every waiter of the
// space.
func (n *Negotiator) finishCreate(spaceID string, key Key) {
	defer func() {
		n.mu.Lock()
		delete(n.finishing, spaceID)
		n.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	ek := n.ring.Space(spaceID)
	fill := func(r *request) {
		r.UserIDs = ek.ParticipantIDs()
		r.KeyURIs = []string{key.URI}
	}
	if err := n.send(ctx, "create-resource", methodCreate, resourcesURI, fill, nil); err != nil {
		logger.Warnf("[kms] create resource for %s failed: %v", spaceID, err)
		n.creates.FailAll(spaceID, err)
		return
	}

	activity := wire.Activity{
		ObjectType: "activity",
		Verb:       wire.VerbUpdateKey,
		Object: wire.ActivityObject{
			ObjectType:                      "conversation",
			DefaultActivityEncryptionKeyURL: key.URI,
		},
		Target: &wire.ActivityTarget{ID: spaceID, ObjectType: "conversation"},
	}
	if err := transport.Post(ctx, n.doer, "activities", activity, nil); err != nil {
		logger.Warnf("[kms] announce key for %s failed: %v", spaceID, err)
		n.creates.FailAll(spaceID, fmt.Errorf("announce key: %w", err))
		return
	}

	n.ring.Store(key)
	ek.store(key)
	resolved := n.creates.ResolveAll(spaceID, key)
	logger.Infof("[kms] created key %s for space %s (%d waiters)", key.URI, spaceID, resolved)
}

// armTimeout fails the waiters of key if requestID is still unanswered
// after the configured timeout.
func (n *Negotiator) armTimeout(arena *pending.Arena[string, Key], key, requestID string) {
	time.AfterFunc(n.timeout, func() {
		bound, ok := arena.Lookup(requestID)
		if !ok || bound != key {
			return
		}
		logger.Warnf("[kms] request %s for %s timed out", requestID, key)
		arena.FailAll(key, ErrRequestTimeout)
	})
}

// wait blocks until done delivers or ctx ends. On cancellation the waiter is
// dropped so a later reply goes to a live caller.
func wait(ctx context.Context, done <-chan keyResult, drop func()) (Key, error) {
	select {
	case res := <-done:
		return res.key, res.err
	case <-ctx.Done():
		drop()
		return Key{}, ctx.Err()
	}
}
