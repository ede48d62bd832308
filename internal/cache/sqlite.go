package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS link_cache (
	fingerprint TEXT PRIMARY KEY,
	destination TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	resolved_at INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL,
	hit_count   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_link_cache_expires ON link_cache (expires_at);
`

// SQLiteStore persists cache entries across restarts. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (and if needed initializes) the cache database at path.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, NewBackendError("open", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent resolutions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, NewBackendError("init", err)
	}

	logger.Debug().Str("path", path).Msg("SQLite cache store opened")
	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "SQLiteCacheStore").Logger(),
	}, nil
}

// Get returns the live entry for the fingerprint or (nil, nil) on a miss.
// A hit increments the persisted hit counter.
func (ss *SQLiteStore) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	now := time.Now()

	row := ss.db.QueryRowContext(ctx,
		`SELECT destination, strategy, resolved_at, expires_at, hit_count
		 FROM link_cache WHERE fingerprint = ? AND expires_at > ?`,
		fingerprint, now.UnixMilli())

	var entry Entry
	var resolvedAt, expiresAt int64
	err := row.Scan(&entry.Destination, &entry.Strategy, &resolvedAt, &expiresAt, &entry.HitCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, NewBackendError("get", err)
	}

	entry.Fingerprint = fingerprint
	entry.ResolvedAt = time.UnixMilli(resolvedAt)
	entry.ExpiresAt = time.UnixMilli(expiresAt)
	entry.HitCount++

	if _, err := ss.db.ExecContext(ctx,
		`UPDATE link_cache SET hit_count = hit_count + 1 WHERE fingerprint = ?`,
		fingerprint); err != nil {
		// The caller already has a valid destination; a failed counter
		// update is not worth surfacing.
		ss.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Failed to increment hit counter")
	}

	return &entry, nil
}

// Put stores the entry, replacing any previous one for the fingerprint.
func (ss *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO link_cache (fingerprint, destination, strategy, resolved_at, expires_at, hit_count)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
			destination = excluded.destination,
			strategy    = excluded.strategy,
			resolved_at = excluded.resolved_at,
			expires_at  = excluded.expires_at,
			hit_count   = excluded.hit_count`,
		entry.Fingerprint, entry.Destination, entry.Strategy,
		entry.ResolvedAt.UnixMilli(), entry.ExpiresAt.UnixMilli(), entry.HitCount)
	if err != nil {
		return NewBackendError("put", err)
	}
	return nil
}

// Invalidate removes the entry for the fingerprint if present.
func (ss *SQLiteStore) Invalidate(ctx context.Context, fingerprint string) error {
	if _, err := ss.db.ExecContext(ctx,
		`DELETE FROM link_cache WHERE fingerprint = ?`, fingerprint); err != nil {
		return NewBackendError("invalidate", err)
	}
	return nil
}

// Sweep removes all expired entries and returns how many were deleted.
func (ss *SQLiteStore) Sweep(ctx context.Context) (int64, error) {
	res, err := ss.db.ExecContext(ctx,
		`DELETE FROM link_cache WHERE expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, NewBackendError("sweep", err)
	}
	removed, _ := res.RowsAffected()
	return removed, nil
}

// Close releases the underlying database handle.
func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}
