package overpass

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache persists Overpass responses in a SQLite file. Entries older
// than the max age are treated as misses; a zero max age keeps entries
// forever.
type SQLiteCache struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(path string, maxAge time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS overpass_cache (
		key        TEXT PRIMARY KEY,
		body       BLOB NOT NULL,
		fetched_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_overpass_cache_fetched_at ON overpass_cache(fetched_at)`)

	return &SQLiteCache{db: db, maxAge: maxAge, now: time.Now}, nil
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		body      []byte
		fetchedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT body, fetched_at FROM overpass_cache WHERE key = ?`, key,
	).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	if c.maxAge > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.maxAge {
		return nil, false, nil
	}
	return body, true, nil
}

// Put implements Cache.
func (c *SQLiteCache) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO overpass_cache (key, body, fetched_at) VALUES (?, ?, ?)`,
		key, body, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Prune deletes entries older than the max age and returns how many were
// removed.
func (c *SQLiteCache) Prune(ctx context.Context) (int64, error) {
	if c.maxAge <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.maxAge).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM overpass_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries.
func (c *SQLiteCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM overpass_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
