// Package store provides SQLite persistence for rate-limit buckets so quotas
// survive process restarts. WAL mode keeps writers from blocking readers.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"poststudio/internal/ratelimit"

	_ "modernc.org/sqlite"
)

// Store manages the quota database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database and initializes the schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_buckets (
		identity     TEXT PRIMARY KEY,
		count        INTEGER NOT NULL DEFAULT 0,
		window_start TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadBuckets returns all persisted buckets.
func (s *Store) LoadBuckets() (map[string]ratelimit.Bucket, error) {
	rows, err := s.db.Query(`SELECT identity, count, window_start FROM usage_buckets`)
	if err != nil {
		return nil, fmt.Errorf("load buckets: %w", err)
	}
	defer rows.Close()

	buckets := make(map[string]ratelimit.Bucket)
	for rows.Next() {
		var identity, windowStart string
		var count int
		if err := rows.Scan(&identity, &count, &windowStart); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, windowStart)
		if err != nil {
			// Corrupt row: skip rather than poison the whole limiter.
			continue
		}
		buckets[identity] = ratelimit.Bucket{Count: count, WindowStart: ts}
	}
	return buckets, rows.Err()
}

// SaveBucket upserts one identity's bucket.
func (s *Store) SaveBucket(identity string, b ratelimit.Bucket) error {
	_, err := s.db.Exec(`
		INSERT INTO usage_buckets (identity, count, window_start)
		VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			count = excluded.count,
			window_start = excluded.window_start`,
		identity, b.Count, b.WindowStart.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save bucket: %w", err)
	}
	return nil
}
