package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// Store is a durable key-value cache with read-time TTL enforcement. Entries
// hold a JSON payload plus its write timestamp; staleness is decided by the
// reader, nothing expires entries in the background.
type Store struct {
	db  *sqlx.DB
	ttl time.Duration
}

// schema for the cache table, applied on open
const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key     TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	ts      INTEGER NOT NULL
)`

// NewStore opens (and if needed initializes) the cache database
func NewStore(ctx context.Context, dsn string, ttl time.Duration) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get loads the entry for key into out. Missing, expired and corrupted
// entries all report found=false; only unexpected database failures surface
// as errors.
func (s *Store) Get(ctx context.Context, key string, out interface{}) (found bool, err error) {
	var row struct {
		Payload string `db:"payload"`
		TS      int64  `db:"ts"`
	}
	err = s.db.GetContext(ctx, &row, "SELECT payload, ts FROM cache_entries WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cache entry %q: %w", key, err)
	}

	if time.Since(time.Unix(row.TS, 0)) >= s.ttl {
		return false, nil
	}

	if err := json.Unmarshal([]byte(row.Payload), out); err != nil {
		// corrupted payload counts as a miss, the caller re-fetches
		log.Printf("[WARN] corrupted cache entry %q dropped: %v", key, err)
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the current timestamp, retrying on
// transient SQLite lock errors.
func (s *Store) Set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry %q: %w", key, err)
	}

	query := `
		INSERT INTO cache_entries (key, payload, ts) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, ts = excluded.ts
	`
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err = retrier.Do(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query, key, string(payload), time.Now().Unix())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("set cache entry %q: %w", key, err)
	}
	return nil
}
