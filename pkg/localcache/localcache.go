// Package localcache is the synchronous local persistence backend: a small
// sqlite-backed key/value table holding one JSON snapshot per collection.
// Capacity is bounded by a byte budget; writes that would push the cache
// past it fail with ErrQuotaExceeded and the caller is expected to offer
// an explicit wipe as the recovery path.
package localcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no snapshot exists for a collection
	ErrNotFound = errors.New("localcache: collection not found")
	// ErrQuotaExceeded is returned when a write would exceed the byte budget
	ErrQuotaExceeded = errors.New("localcache: storage quota exceeded")
)

const schema = `
CREATE TABLE IF NOT EXISTS cache (
    name       TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// Cache is a bounded local key/value snapshot store
type Cache struct {
	// mu serializes writes: the budget check and the insert are separate
	// statements, and concurrent Sets passing the check together could
	// push the cache past maxBytes.
	mu       sync.Mutex
	db       *sql.DB
	maxBytes int64
}

// Open creates (or reuses) the cache database at dir/cache.db
func Open(dir string, maxBytes int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	// A single connection keeps sqlite happy under the pure-Go driver.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{db: db, maxBytes: maxBytes}, nil
}

// Close releases the underlying database handle
func (c *Cache) Close() error {
	return c.db.Close()
}

// Set stores a snapshot under name, enforcing the byte budget. The budget
// check accounts for the row being replaced, so re-writing a shrinking
// collection always succeeds. Check and write run under the cache mutex,
// so concurrent saves can never overshoot the budget together.
func (c *Cache) Set(ctx context.Context, name string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var existing int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(LENGTH(value), 0) FROM cache WHERE name = ?`, name,
	).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read cache entry size: %w", err)
	}

	var total int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM cache`,
	).Scan(&total); err != nil {
		return fmt.Errorf("failed to read cache size: %w", err)
	}

	if total-existing+int64(len(value)) > c.maxBytes {
		return ErrQuotaExceeded
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO cache (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Get returns the snapshot stored under name, or ErrNotFound
func (c *Cache) Get(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache WHERE name = ?`, name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, nil
}

// SizeBytes reports the total payload size currently held
func (c *Cache) SizeBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM cache`,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to read cache size: %w", err)
	}
	return total, nil
}

// Wipe deletes every snapshot. This is the user-driven recovery action for
// quota exhaustion, never invoked automatically.
func (c *Cache) Wipe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache`); err != nil {
		return fmt.Errorf("failed to wipe cache: %w", err)
	}
	return nil
}
