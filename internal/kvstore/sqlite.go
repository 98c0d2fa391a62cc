package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a Store backed by a local SQLite database. Records live in
// a single two-column table keyed by the record key, so prefix scans map
// directly onto an index range query.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the corpus database.
// It resolves to ~/.lectura/corpus.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("kvstore: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".lectura")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("kvstore: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "corpus.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteStore at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS records (
    k  TEXT PRIMARY KEY,
    v  BLOB NOT NULL
) WITHOUT ROWID;
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("kvstore: migrate: %w", err)
	}
	return nil
}

// Put writes value under key, overwriting any existing record.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	const q = `INSERT INTO records (k, v) VALUES (?, ?)
               ON CONFLICT(k) DO UPDATE SET v = excluded.v`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("kvstore: put %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT v FROM records WHERE k = ?`
	var v []byte
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %s: %w", key, err)
	}
	return v, nil
}

// Delete removes the record under key. Deleting a missing key is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM records WHERE k = ?`
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

// List returns all entries whose key starts with prefix, ordered by key
// ascending. The scan uses the primary-key index via a half-open range.
func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	var rows *sql.Rows
	var err error

	if end := prefixEnd(prefix); end != "" {
		const q = `SELECT k, v FROM records WHERE k >= ? AND k < ? ORDER BY k ASC`
		rows, err = s.db.QueryContext(ctx, q, prefix, end)
	} else {
		const q = `SELECT k, v FROM records WHERE k >= ? ORDER BY k ASC`
		rows, err = s.db.QueryContext(ctx, q, prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: list %q: %w", prefix, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("kvstore: list scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kvstore: list rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("kvstore: close: %w", err)
	}
	return nil
}
