// Package sqlite provides a SQLite-backed document store. It is the durable
// backend for products, users, and transaction history on a single tablet.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	idspkg "github.com/ichaaulia/supercart/internal/engine/ids"
	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
	storepkg "github.com/ichaaulia/supercart/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, created_at);
`

// Store persists documents in a single SQLite database.
type Store struct {
	db *sql.DB
}

var _ storepkg.Store = (*Store)(nil)

// Open creates (if needed) and opens the database at path. Use ":memory:"
// for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string, v any) error {
	collection, id, err := storepkg.SplitKey(key)
	if err != nil {
		return err
	}

	var payload []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return storepkg.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", key, err)
	}

	return jsoncodec.Unmarshal(payload, v)
}

func (s *Store) Set(ctx context.Context, key string, v any) error {
	collection, id, err := storepkg.SplitKey(key)
	if err != nil {
		return err
	}

	payload, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, payload, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET payload = excluded.payload`,
		collection, id, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	collection, id, err := storepkg.SplitKey(key)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id,
	); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, collection string, v any) (string, error) {
	id := idspkg.CreateULID()
	if err := s.Set(ctx, storepkg.Key(collection, id), v); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Scan(ctx context.Context, collection string, fn func(id string, raw []byte) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM documents WHERE collection = ? ORDER BY id`, collection,
	)
	if err != nil {
		return fmt.Errorf("failed to scan collection %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return err
		}
		if err := fn(id, payload); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
