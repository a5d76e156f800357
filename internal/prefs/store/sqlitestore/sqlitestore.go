// Package sqlitestore persists preferences in a SQLite database.
//
// Several namespaces may share one database file; every row is keyed by
// (namespace, key). Values are stored as text together with their kind and
// parsed back exactly on read.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dshills/typedprefs/internal/prefs/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	kind       TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// Store is a store.Store bound to one namespace of a SQLite database.
type Store struct {
	db        *sql.DB
	namespace string
	now       func() time.Time
}

// Open opens (or creates) the database at dsn and binds the returned store
// to namespace. Pass ":memory:" for an in-memory database.
func Open(ctx context.Context, dsn, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, errors.New("sqlitestore: empty namespace")
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and avoids
	// "database is locked" errors.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if dsn != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting journal mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, namespace: namespace, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name implements store.Store.
func (s *Store) Name() string { return s.namespace }

// All implements store.Store.
func (s *Store) All(ctx context.Context) (map[string]store.Value, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, kind, value FROM preferences WHERE namespace = ?", s.namespace)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	result := make(map[string]store.Value)
	for rows.Next() {
		var key, kind, text string
		if err := rows.Scan(&key, &kind, &text); err != nil {
			return nil, err
		}
		v, err := decode(kind, text)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		result[key] = v
	}
	return result, rows.Err()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) (store.Value, bool, error) {
	var kind, text string
	err := s.db.QueryRowContext(ctx,
		"SELECT kind, value FROM preferences WHERE namespace = ? AND key = ?",
		s.namespace, key,
	).Scan(&kind, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Value{}, false, nil
	}
	if err != nil {
		return store.Value{}, false, fmt.Errorf("querying %q: %w", key, err)
	}
	v, err := decode(kind, text)
	if err != nil {
		return store.Value{}, false, fmt.Errorf("key %q: %w", key, err)
	}
	return v, true, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, key string, value store.Value) error {
	if key == "" {
		return store.ErrInvalidKey
	}
	if !value.IsValid() {
		return store.ErrInvalidValue
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (namespace, key, kind, value, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, key, value.Kind().String(), value.Text(), s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// Remove implements store.Store.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM preferences WHERE namespace = ? AND key = ?", s.namespace, key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// RemoveAll implements store.Store. Other namespaces are untouched.
func (s *Store) RemoveAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM preferences WHERE namespace = ?", s.namespace); err != nil {
		return fmt.Errorf("deleting namespace %q: %w", s.namespace, err)
	}
	return nil
}

// WithNamespace returns a store sharing the same database but bound to a
// different namespace. Closing either store closes the database.
func (s *Store) WithNamespace(namespace string) *Store {
	return &Store{db: s.db, namespace: namespace, now: s.now}
}

// UpdatedAt returns when key was last written.
func (s *Store) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var ts string
	err := s.db.QueryRowContext(ctx,
		"SELECT updated_at FROM preferences WHERE namespace = ? AND key = ?",
		s.namespace, key,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing updated_at: %w", err)
	}
	return t, true, nil
}

func decode(kind, text string) (store.Value, error) {
	k, err := store.ParseKind(kind)
	if err != nil {
		return store.Value{}, err
	}
	return store.Parse(k, text)
}

var _ store.Store = (*Store)(nil)
