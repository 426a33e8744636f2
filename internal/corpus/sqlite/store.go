// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/curio-dev/curio/internal/corpus"
)

// Compile-time interface check.
var _ corpus.Store = (*ItemStore)(nil)

// ItemStore implements corpus.Store backed by SQLite.
type ItemStore struct {
	db *sql.DB
}

// NewItemStore opens (or creates) a SQLite database at dbPath and
// initialises the items table.
func NewItemStore(dbPath string) (*ItemStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating items table: %w", err)
	}

	return &ItemStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	category    TEXT NOT NULL DEFAULT '',
	price       REAL NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	embedding   TEXT NOT NULL DEFAULT '[]',
	signals     TEXT NOT NULL DEFAULT '{}',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *ItemStore) Close() error {
	return s.db.Close()
}

func (s *ItemStore) Put(ctx context.Context, item *corpus.Item) error {
	if item == nil {
		return fmt.Errorf("%w: item must not be nil", corpus.ErrInvalidInput)
	}
	if err := item.Validate(); err != nil {
		return err
	}

	embJSON, err := json.Marshal(item.Embedding)
	if err != nil {
		return fmt.Errorf("marshalling embedding for item %s: %w", item.ID, err)
	}
	sigJSON := []byte("{}")
	if len(item.Signals) > 0 {
		sigJSON, err = json.Marshal(item.Signals)
		if err != nil {
			return fmt.Errorf("marshalling signals for item %s: %w", item.ID, err)
		}
	}

	now := time.Now().UTC()
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	// created_at is not in the update set, so replacing keeps the original.
	const q = `INSERT INTO items (id, category, price, description, embedding, signals, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	category = excluded.category,
	price = excluded.price,
	description = excluded.description,
	embedding = excluded.embedding,
	signals = excluded.signals,
	updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, q,
		item.ID,
		item.Category,
		item.Price,
		item.Description,
		string(embJSON),
		string(sigJSON),
		formatTime(createdAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("putting item %s: %w", item.ID, err)
	}
	return nil
}

func (s *ItemStore) Get(ctx context.Context, id string) (*corpus.Item, error) {
	const q = `SELECT id, category, price, description, embedding, signals, created_at, updated_at
FROM items WHERE id = ?`

	item, err := scanItem(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %s: %w", id, corpus.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}
	return item, nil
}

func (s *ItemStore) GetBatch(ctx context.Context, ids []string) (map[string]*corpus.Item, error) {
	if len(ids) == 0 {
		return map[string]*corpus.Item{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	q := `SELECT id, category, price, description, embedding, signals, created_at, updated_at
FROM items WHERE id IN (` + placeholders + `)`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("batch getting items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]*corpus.Item, len(ids))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		found[item.ID] = item
	}
	return found, rows.Err()
}

func (s *ItemStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for item %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("item %s: %w", id, corpus.ErrNotFound)
	}
	return nil
}

func (s *ItemStore) ForEach(ctx context.Context, fn func(*corpus.Item) error) error {
	const q = `SELECT id, category, price, description, embedding, signals, created_at, updated_at
FROM items ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("iterating items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return fmt.Errorf("scanning item row: %w", err)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *ItemStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanItem.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*corpus.Item, error) {
	var item corpus.Item
	var embJSON, sigJSON, createdAt, updatedAt string

	if err := row.Scan(
		&item.ID,
		&item.Category,
		&item.Price,
		&item.Description,
		&embJSON,
		&sigJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if embJSON != "" && embJSON != "[]" {
		if err := json.Unmarshal([]byte(embJSON), &item.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshalling embedding: %w", err)
		}
	}
	if sigJSON != "" && sigJSON != "{}" {
		if err := json.Unmarshal([]byte(sigJSON), &item.Signals); err != nil {
			return nil, fmt.Errorf("unmarshalling signals: %w", err)
		}
	}

	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
