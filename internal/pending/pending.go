// Package pending is a registry of callers waiting on asynchronous replies.
//
// Waiters are grouped per key (an encryption key URL, a space id, ...) and
// kept in registration order. A reply either resolves the oldest waiter of a
// key or every waiter of a key; a failure fails every waiter of a key. Wire
// request ids can be bound to a key so replies are routed by correlation id
// instead of by guessing.
package pending

import (
	"sync"

	"github.com/google/uuid"
)

// Callback receives the outcome of a wait.
type Callback[V any] func(V, error)

type waiter[V any] struct {
	id  string
	seq uint64
	cb  Callback[V]
}

// Arena holds FIFO waiter queues per key.
type Arena[K comparable, V any] struct {
	mu       sync.Mutex
	seq      uint64
	queues   map[K][]waiter[V]
	requests map[string]K
}

// New returns an empty arena.
func New[K comparable, V any]() *Arena[K, V] {
	return &Arena[K, V]{
		queues:   make(map[K][]waiter[V]),
		requests: make(map[string]K),
	}
}

// Add registers cb under key. first reports whether key had no waiters
// before, meaning the caller is responsible for issuing the wire request.
func (a *Arena[K, V]) Add(key K, cb Callback[V]) (id string, first bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	id = uuid.NewString()
	first = len(a.queues[key]) == 0
	a.queues[key] = append(a.queues[key], waiter[V]{id: id, seq: a.seq, cb: cb})
	return id, first
}

// Remove drops a single waiter without invoking it.
func (a *Arena[K, V]) Remove(key K, id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	q := a.queues[key]
	for i, w := range q {
		if w.id != id {
			continue
		}
		q = append(q[:i:i], q[i+1:]...)
		a.store(key, q)
		return true
	}
	return false
}

// Bind associates a wire request id with key.
func (a *Arena[K, V]) Bind(requestID string, key K) {
	if requestID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests[requestID] = key
}

// Lookup returns the key bound to requestID.
func (a *Arena[K, V]) Lookup(requestID string) (K, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key, ok := a.requests[requestID]
	return key, ok
}

// Unbind forgets a wire request id.
func (a *Arena[K, V]) Unbind(requestID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.requests, requestID)
}

// UnbindKey forgets every wire request id bound to key.
func (a *Arena[K, V]) UnbindKey(key K) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, k := range a.requests {
		if k == key {
			delete(a.requests, id)
		}
	}
}

// Len returns the number of waiters queued under key.
func (a *Arena[K, V]) Len(key K) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queues[key])
}

// Keys returns every key with waiters, oldest registration first.
func (a *Arena[K, V]) Keys() []K {
	a.mu.Lock()
	defer a.mu.Unlock()

	type entry struct {
		key K
		seq uint64
	}
	entries := make([]entry, 0, len(a.queues))
	for k, q := range a.queues {
		entries = append(entries, entry{key: k, seq: q[0].seq})
	}
	// Insertion sort; the number of concurrently pending keys is tiny.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].seq < entries[j-1].seq; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	keys := make([]K, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}

// OldestKey returns the key whose first waiter registered earliest.
func (a *Arena[K, V]) OldestKey() (K, bool) {
	keys := a.Keys()
	if len(keys) == 0 {
		var zero K
		return zero, false
	}
	return keys[0], true
}

// ResolveOldest completes the earliest waiter of key with v. It reports
// whether a waiter existed.
func (a *Arena[K, V]) ResolveOldest(key K, v V) bool {
	a.mu.Lock()
	q := a.queues[key]
	if len(q) == 0 {
		a.mu.Unlock()
		return false
	}
	w := q[0]
	a.store(key, q[1:])
	a.mu.Unlock()

	w.cb(v, nil)
	return true
}

// ResolveAll completes every waiter of key with v, in registration order.
func (a *Arena[K, V]) ResolveAll(key K, v V) int {
	ws := a.take(key)
	for _, w := range ws {
		w.cb(v, nil)
	}
	return len(ws)
}

// FailAll completes every waiter of key with err, in registration order.
func (a *Arena[K, V]) FailAll(key K, err error) int {
	var zero V
	ws := a.take(key)
	for _, w := range ws {
		w.cb(zero, err)
	}
	return len(ws)
}

func (a *Arena[K, V]) take(key K) []waiter[V] {
	a.mu.Lock()
	defer a.mu.Unlock()
	ws := a.queues[key]
	a.store(key, nil)
	return ws
}

// store replaces the queue for key; drained keys are removed together with
// their request bindings. Callers hold a.mu.
func (a *Arena[K, V]) store(key K, q []waiter[V]) {
	if len(q) > 0 {
		a.queues[key] = q
		return
	}
	delete(a.queues, key)
	for id, k := range a.requests {
		if k == key {
			delete(a.requests, id)
		}
	}
}
