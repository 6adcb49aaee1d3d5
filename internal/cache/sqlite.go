// Package cache keeps fetched region responses in a local SQLite file so
// repeated runs inside the TTL skip the network.
package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite is a TTL keyed blob cache backed by modernc.org/sqlite.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the cache database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	c := &SQLite{db: db, now: time.Now}
	if err := c.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return c, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS response_cache (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_response_cache_expires_at ON response_cache(expires_at);
`

// Migrate creates the cache table if absent.
func (c *SQLite) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "cache: migrate")
}

// Close closes the database.
func (c *SQLite) Close() error {
	return c.db.Close()
}

// Get returns the body stored under key if it has not expired.
func (c *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT body FROM response_cache WHERE cache_key = ? AND expires_at > ?`,
		key, c.now().UTC().Unix(),
	)
	var body []byte
	err := row.Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	return body, true, nil
}

// Put stores body under key for ttl, replacing any previous entry.
func (c *SQLite) Put(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	now := c.now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO response_cache (id, cache_key, body, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		uuid.New().String(), key, body, now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrapf(err, "cache: put %s", key)
}

// DeleteExpired removes expired entries and returns how many were removed.
func (c *SQLite) DeleteExpired(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM response_cache WHERE expires_at <= ?`, c.now().UTC().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "cache: delete expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: rows affected")
	}
	return int(n), nil
}
