package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueuePreservesSubmissionOrder(t *testing.T) {
	d := New(4)
	defer d.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, d.Do(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestQueueSerializesConcurrentCallers(t *testing.T) {
	d := New(0)
	defer d.Close()

	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := d.Call(func() (any, error) {
					counter++
					return nil, nil
				})
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1000, counter)
}

func TestQueueClosedRejectsWork(t *testing.T) {
	d := New(1)
	d.Close()
	d.Close()
	require.ErrorIs(t, d.Do(func() {}), ErrClosed)
}
