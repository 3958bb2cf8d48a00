// Package sqlitestore is the SQLite storage backend, for deployments that
// need bot memory to survive restarts without a document store.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flint-bot/flint/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS bot_memory (
	scope TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (scope, key)
);
`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlitestore path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, scope, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_memory (scope, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value`,
		scope, key, value)
	return err
}

func (s *Store) Read(ctx context.Context, scope, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM bot_memory WHERE scope = ? AND key = ?`, scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) ReadScope(ctx context.Context, scope string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM bot_memory WHERE scope = ?`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, scope, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM bot_memory WHERE scope = ? AND key = ?`, scope, key)
	return err
}

func (s *Store) DeleteScope(ctx context.Context, scope string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM bot_memory WHERE scope = ?`, scope)
	return err
}
