package cache

import (
	"context"
	"fmt"
	"time"
)

// Entry is a cached resolution keyed by the source URL fingerprint.
// Only genuine resolved destinations are ever stored; declined or failed
// pipeline outcomes must not reach Put.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	Destination string    `json:"destination"`
	Strategy    string    `json:"strategy"`
	ResolvedAt  time.Time `json:"resolved_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	HitCount    int64     `json:"hit_count"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Store is the link cache contract. Get returns (nil, nil) on a miss and
// never returns an expired entry; a hit increments the entry's hit counter.
// Backend failures are reported as BackendError so callers can degrade to
// a miss on reads and log-and-continue on writes.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
	Invalidate(ctx context.Context, fingerprint string) error
}

// BackendError indicates the cache backend itself is unavailable,
// as opposed to a plain miss.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("cache backend unavailable during %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps a backend failure for the given operation.
func NewBackendError(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}
