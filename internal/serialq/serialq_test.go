package serialq

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSyncRunsBlocksInOrderOneAtATime(t *testing.T) {
	q := New()

	var (
		mu      sync.Mutex
		order   []int
		running int32
		maxRun  int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		q.Sync(func(yield func()) {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRun)
				if n <= m || atomic.CompareAndSwapInt32(&maxRun, m, n) {
					break
				}
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()

			// Yield from a different goroutine, the way a network callback would.
			go func() {
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				yield()
				wg.Done()
			}()
		})
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&maxRun))
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestNextBlockWaitsForYield(t *testing.T) {
	q := New()

	release := make(chan struct{})
	started := make(chan int, 2)

	q.Sync(func(yield func()) {
		started <- 1
		<-release
		yield()
	})
	q.Sync(func(yield func()) {
		started <- 2
		yield()
	})

	require.Equal(t, 1, <-started)
	select {
	case <-started:
		t.Fatal("second block started before the first yielded")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 1, q.Pending())

	close(release)
	require.Equal(t, 2, <-started)
}

func TestYieldIsIdempotent(t *testing.T) {
	q := New()

	done := make(chan struct{})
	var second, third int32
	q.Sync(func(yield func()) {
		yield()
		yield()
		close(done)
	})
	<-done

	hold := make(chan struct{})
	q.Sync(func(yield func()) {
		atomic.StoreInt32(&second, 1)
		<-hold
		yield()
	})
	q.Sync(func(yield func()) {
		atomic.StoreInt32(&third, 1)
		yield()
	})

	require.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&third))
	close(hold)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&third) == 1 }, time.Second, time.Millisecond)
}

func TestDoReleasesGateOnCancel(t *testing.T) {
	q := New()

	hold := make(chan struct{})
	q.Sync(func(yield func()) {
		<-hold
		yield()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Do(ctx, func(context.Context) error { return nil })
	}()
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(hold)
	ran := make(chan struct{})
	require.NoError(t, q.Do(context.Background(), func(context.Context) error {
		close(ran)
		return nil
	}))
	<-ran
}
