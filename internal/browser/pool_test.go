package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id     int
	closed atomic.Bool
	live   *atomic.Int32
}

func (s *fakeSession) Resolve(ctx context.Context, url string) (string, error) {
	return url, nil
}

func (s *fakeSession) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.live.Add(-1)
	}
	return nil
}

// fakeFactory mints fakeSessions and tracks how many are live at once.
type fakeFactory struct {
	live    atomic.Int32
	maxLive atomic.Int32
	minted  atomic.Int32
}

func (f *fakeFactory) new() (Session, error) {
	n := f.live.Add(1)
	for {
		max := f.maxLive.Load()
		if n <= max || f.maxLive.CompareAndSwap(max, n) {
			break
		}
	}
	id := int(f.minted.Add(1))
	return &fakeSession{id: id, live: &f.live}, nil
}

func TestPoolAcquireReleaseReusesSession(t *testing.T) {
	f := &fakeFactory{}
	pool := NewPool(1, f.new, zerolog.Nop())
	defer pool.Close()

	ctx := context.Background()

	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(s1)

	s2, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(s2)

	assert.Same(t, s1, s2, "released session should be reused")
	assert.Equal(t, int32(1), f.minted.Load())
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	f := &fakeFactory{}
	pool := NewPool(2, f.new, zerolog.Nop())
	defer pool.Close()

	ctx := context.Background()

	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	s2, err := pool.Acquire(ctx)
	require.NoError(t, err)

	acquired := make(chan Session)
	go func() {
		s, err := pool.Acquire(ctx)
		require.NoError(t, err)
		acquired <- s
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should block while pool is exhausted")
	case <-time.After(100 * time.Millisecond):
	}

	pool.Release(s1)

	select {
	case s := <-acquired:
		pool.Release(s)
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not unblock after release")
	}

	pool.Release(s2)
	assert.LessOrEqual(t, f.maxLive.Load(), int32(2))
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	f := &fakeFactory{}
	pool := NewPool(1, f.new, zerolog.Nop())
	defer pool.Close()

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(s1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolDiscardMintsReplacement(t *testing.T) {
	f := &fakeFactory{}
	pool := NewPool(1, f.new, zerolog.Nop())
	defer pool.Close()

	ctx := context.Background()

	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Discard(s1)

	assert.True(t, s1.(*fakeSession).closed.Load(), "discarded session should be closed")

	s2, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(s2)

	assert.NotSame(t, s1, s2)
	assert.Equal(t, int32(2), f.minted.Load())
}

func TestPoolNeverExceedsCapacityUnderLoad(t *testing.T) {
	f := &fakeFactory{}
	pool := NewPool(3, f.new, zerolog.Nop())
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s, err := pool.Acquire(context.Background())
			if err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
			if n%4 == 0 {
				pool.Discard(s)
			} else {
				pool.Release(s)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, f.maxLive.Load(), int32(3), "live sessions must never exceed pool capacity")
}

func TestPoolCloseReleasesWaiters(t *testing.T) {
	f := &fakeFactory{}
	pool := NewPool(1, f.new, zerolog.Nop())

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(context.Background())
		errs <- err
	}()

	time.Sleep(50 * time.Millisecond)
	pool.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not released on close")
	}

	pool.Release(s1)
	assert.True(t, s1.(*fakeSession).closed.Load(), "in-flight session released after close should be closed")
}
