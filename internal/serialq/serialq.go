// Package serialq implements a FIFO gate for asynchronous operations.
//
// A Queue admits one block at a time. A block keeps the gate until it calls
// the yield function it was handed; only then does the next waiting block
// start. There is no timeout: a block that never yields stalls the queue.
package serialq

import (
	"context"
	"sync"
)

// Block is an asynchronous unit of work. It must eventually call yield,
// typically from whatever goroutine finishes the work.
type Block func(yield func())

// Queue runs blocks in FIFO order with single concurrency.
type Queue struct {
	mu      sync.Mutex
	busy    bool
	waiting []Block
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Sync enqueues block to run after every previously enqueued block has
// yielded. It never blocks the caller.
func (q *Queue) Sync(block Block) {
	if block == nil {
		return
	}
	q.mu.Lock()
	if q.busy {
		q.waiting = append(q.waiting, block)
		q.mu.Unlock()
		return
	}
	q.busy = true
	q.mu.Unlock()

	q.start(block)
}

func (q *Queue) start(block Block) {
	var once sync.Once
	yield := func() {
		once.Do(q.next)
	}
	go block(yield)
}

func (q *Queue) next() {
	q.mu.Lock()
	if len(q.waiting) == 0 {
		q.busy = false
		q.mu.Unlock()
		return
	}
	block := q.waiting[0]
	q.waiting[0] = nil
	q.waiting = q.waiting[1:]
	q.mu.Unlock()

	q.start(block)
}

// Pending returns the number of blocks waiting behind the running one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Do runs fn inside the gate and yields when it returns. If ctx ends while
// waiting for the gate, Do returns ctx.Err() and the slot is released as soon
// as it is reached.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	type turn struct {
		yield func()
	}
	admitted := make(chan turn)
	abandoned := make(chan struct{})

	q.Sync(func(yield func()) {
		select {
		case <-abandoned:
			yield()
		case admitted <- turn{yield: yield}:
		}
	})

	select {
	case t := <-admitted:
		defer t.yield()
		return fn(ctx)
	case <-ctx.Done():
		close(abandoned)
		return ctx.Err()
	}
}
