package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// MemoryStore is an in-process Store sharded by fingerprint hash so
// resolutions for distinct fingerprints never contend on one lock.
// Expiry is lazy on Get, with an optional periodic sweep.
type MemoryStore struct {
	shards [shardCount]*shard
	logger zerolog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	ms := &MemoryStore{
		logger: logger.With().Str("component", "MemoryCacheStore").Logger(),
	}
	for i := range ms.shards {
		ms.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return ms
}

func (ms *MemoryStore) shardFor(fingerprint string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fingerprint))
	return ms.shards[h.Sum32()%shardCount]
}

// Get returns a copy of the live entry for the fingerprint, or (nil, nil)
// on a miss. Expired entries are dropped and reported as misses. A hit
// increments the stored hit counter.
func (ms *MemoryStore) Get(_ context.Context, fingerprint string) (*Entry, error) {
	s := ms.shardFor(fingerprint)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	if entry.Expired(now) {
		delete(s.entries, fingerprint)
		return nil, nil
	}

	entry.HitCount++
	copied := *entry
	return &copied, nil
}

// Put stores the entry, replacing any previous one for the fingerprint.
func (ms *MemoryStore) Put(_ context.Context, entry Entry) error {
	s := ms.shardFor(entry.Fingerprint)

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := entry
	s.entries[entry.Fingerprint] = &stored
	return nil
}

// Invalidate removes the entry for the fingerprint if present.
func (ms *MemoryStore) Invalidate(_ context.Context, fingerprint string) error {
	s := ms.shardFor(fingerprint)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, fingerprint)
	return nil
}

// Len returns the number of stored entries, including not-yet-swept
// expired ones.
func (ms *MemoryStore) Len() int {
	total := 0
	for _, s := range ms.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// StartSweeper launches a goroutine that periodically removes expired
// entries until ctx is cancelled. Lazy expiry on Get already guarantees
// correctness; the sweep only bounds memory growth.
func (ms *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ms.sweep()
			}
		}
	}()
}

func (ms *MemoryStore) sweep() {
	now := time.Now()
	removed := 0
	for _, s := range ms.shards {
		s.mu.Lock()
		for fp, entry := range s.entries {
			if entry.Expired(now) {
				delete(s.entries, fp)
				removed++
			}
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		ms.logger.Debug().Int("removed", removed).Msg("Swept expired cache entries")
	}
}
