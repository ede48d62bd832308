package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(fp, dest string, ttl time.Duration) Entry {
	now := time.Now()
	return Entry{
		Fingerprint: fp,
		Destination: dest,
		Strategy:    "Base64 Decode",
		ResolvedAt:  now,
		ExpiresAt:   now.Add(ttl),
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore(zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newEntry("fp1", "http://real.example/abc", time.Minute)))

	entry, err := store.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "http://real.example/abc", entry.Destination)
	assert.Equal(t, int64(1), entry.HitCount)

	entry, err = store.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.HitCount, "hit counter must increment on every hit")
}

func TestMemoryStore_MissReturnsNil(t *testing.T) {
	store := NewMemoryStore(zerolog.Nop())
	entry, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryStore_LazyExpiry(t *testing.T) {
	store := NewMemoryStore(zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newEntry("fp1", "http://real.example", 10*time.Millisecond)))
	time.Sleep(30 * time.Millisecond)

	entry, err := store.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(t, entry, "Get must never return an expired entry")
	assert.Equal(t, 0, store.Len(), "expired entry must be dropped on access")
}

func TestMemoryStore_Invalidate(t *testing.T) {
	store := NewMemoryStore(zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newEntry("fp1", "http://real.example", time.Minute)))
	require.NoError(t, store.Invalidate(ctx, "fp1"))

	entry, err := store.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore(zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newEntry("short", "http://a.example", 5*time.Millisecond)))
	require.NoError(t, store.Put(ctx, newEntry("long", "http://b.example", time.Minute)))

	time.Sleep(20 * time.Millisecond)
	store.sweep()

	assert.Equal(t, 1, store.Len())
	entry, err := store.Get(ctx, "long")
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fp := fmt.Sprintf("fp-%d", n%4)
			for j := 0; j < 100; j++ {
				_ = store.Put(ctx, newEntry(fp, "http://real.example", time.Minute))
				_, _ = store.Get(ctx, fp)
				if j%10 == 0 {
					_ = store.Invalidate(ctx, fp)
				}
			}
		}(i)
	}
	wg.Wait()
}
