package push

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 64 * time.Second
)

// Backoff produces exponentially growing reconnect delays with jitter.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
	// Jitter is the fraction of the delay added at random.
	Jitter float64

	mu      sync.Mutex
	attempt int
}

// NewBackoff returns a backoff starting at 1s, doubling up to 64s.
func NewBackoff() *Backoff {
	return &Backoff{Base: defaultBackoffBase, Max: defaultBackoffMax, Jitter: 0.2}
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.Base
	for i := 0; i < b.attempt && d < b.Max; i++ {
		d *= 2
	}
	b.attempt++
	if b.Jitter > 0 {
		d += time.Duration(rand.Float64() * b.Jitter * float64(d))
	}
	return min(d, b.Max)
}

// Reset starts over from Base.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}
