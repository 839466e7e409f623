// Package dispatch serializes work onto a single goroutine.
//
// Application-visible callbacks (call events, message events) are always
// delivered through one Queue so listeners observe them in a single total
// order regardless of which transport goroutine produced them.
package dispatch

import (
	"errors"
	"sync"
)

const defaultQueueSize = 256

// ErrClosed is returned when work is submitted to a closed queue.
var ErrClosed = errors.New("dispatch queue closed")

type result struct {
	value any
	err   error
}

// Queue runs submitted functions one at a time, in submission order.
type Queue struct {
	mu     sync.RWMutex
	closed bool
	q      chan func()
	done   chan struct{}
}

// New starts a queue with the given mailbox size.
func New(queueSize int) *Queue {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	d := &Queue{
		q:    make(chan func(), queueSize),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Queue) run() {
	defer close(d.done)
	for fn := range d.q {
		if fn != nil {
			fn()
		}
	}
}

// Do enqueues fn and returns without waiting for it to run.
func (d *Queue) Do(fn func()) error {
	if d == nil {
		return errors.New("dispatcher not initialized")
	}
	if fn == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	d.q <- fn
	return nil
}

// Call enqueues fn and waits for its result.
func (d *Queue) Call(fn func() (any, error)) (any, error) {
	if fn == nil {
		return nil, nil
	}
	done := make(chan result, 1)
	err := d.Do(func() {
		value, err := fn()
		done <- result{value: value, err: err}
	})
	if err != nil {
		return nil, err
	}
	res := <-done
	return res.value, res.err
}

// Flush waits until everything enqueued before the call has run.
func (d *Queue) Flush() {
	_, _ = d.Call(func() (any, error) { return nil, nil })
}

// Close stops accepting work and waits for queued work to drain.
func (d *Queue) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.q)
	d.mu.Unlock()
	<-d.done
}
