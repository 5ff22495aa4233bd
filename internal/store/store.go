// Package store persists normalized emails and user groups in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrEmailNotFound is returned when a requested email is not stored.
	ErrEmailNotFound = errors.New("email not found")
	// ErrGroupNotFound is returned when a requested group does not exist.
	ErrGroupNotFound = errors.New("group not found")
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS emails (
		id          TEXT PRIMARY KEY,
		thread_id   TEXT NOT NULL,
		subject     TEXT NOT NULL DEFAULT '',
		from_addr   TEXT NOT NULL DEFAULT '',
		to_addrs    TEXT NOT NULL DEFAULT '[]',
		cc_addrs    TEXT NOT NULL DEFAULT '[]',
		received_at INTEGER NOT NULL,
		snippet     TEXT NOT NULL DEFAULT '',
		body_plain  TEXT NOT NULL DEFAULT '',
		body_html   TEXT NOT NULL DEFAULT '',
		body_source TEXT NOT NULL DEFAULT '',
		is_read     INTEGER NOT NULL DEFAULT 0,
		is_starred  INTEGER NOT NULL DEFAULT 0,
		label_ids   TEXT NOT NULL DEFAULT '[]',
		category    TEXT NOT NULL DEFAULT '',
		summary     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS emails_received_at ON emails (received_at DESC)`,
	`CREATE INDEX IF NOT EXISTS emails_thread_id ON emails (thread_id)`,
	`CREATE TABLE IF NOT EXISTS email_groups (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color       TEXT NOT NULL DEFAULT '',
		keywords    TEXT NOT NULL DEFAULT '[]',
		domains     TEXT NOT NULL DEFAULT '[]',
		senders     TEXT NOT NULL DEFAULT '[]',
		sort_order  INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`,
}

// Store is a SQLite-backed repository. It is safe for concurrent use; writes
// are serialised through a single connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func decodeList(raw string) ([]string, error) {
	var out []string
	if raw == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode list column: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}
