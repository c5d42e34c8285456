// Package sqlite implements store.Store on an SQLite file using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aixgo-dev/reasongraph/internal/store"

	_ "modernc.org/sqlite"
)

func init() {
	store.Register("sqlite", func(cfg store.Config) (store.Store, error) {
		return Open(cfg.Path)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
	id INTEGER PRIMARY KEY,
	text TEXT,
	embedding BLOB,
	is_question INTEGER
);`

// Store is an SQLite-backed embedding store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. An empty path or
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert adds a row and returns its id.
func (s *Store) Insert(ctx context.Context, text string, embedding []float32, isQuestion bool) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (text, embedding, is_question) VALUES (?, ?, ?)`,
		text, store.EncodeVector(embedding), boolToInt(isQuestion))
	if err != nil {
		return 0, fmt.Errorf("insert embedding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert embedding: %w", err)
	}
	return id, nil
}

// Get returns the row with id, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (store.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, embedding, is_question FROM embeddings WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, fmt.Errorf("get %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get %d: %w", id, err)
	}
	return rec, nil
}

// All returns every row in id order.
func (s *Store) All(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, embedding, is_question FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	return out, nil
}

// Update overwrites the row with rec.ID, or returns store.ErrNotFound.
func (s *Store) Update(ctx context.Context, rec store.Record) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE embeddings SET text = ?, embedding = ?, is_question = ? WHERE id = ?`,
		rec.Text, store.EncodeVector(rec.Embedding), boolToInt(rec.IsQuestion), rec.ID)
	if err != nil {
		return fmt.Errorf("update %d: %w", rec.ID, err)
	}
	return requireAffected(res, "update", rec.ID)
}

// Delete removes the row with id, or returns store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	return requireAffected(res, "delete", id)
}

// DeleteAll empties the embeddings table.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

// Count returns the number of rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (store.Record, error) {
	var (
		rec        store.Record
		text       sql.NullString
		blob       []byte
		isQuestion sql.NullInt64
	)
	if err := sc.Scan(&rec.ID, &text, &blob, &isQuestion); err != nil {
		return store.Record{}, err
	}
	rec.Text = text.String
	rec.Embedding = store.DecodeVector(blob)
	rec.IsQuestion = isQuestion.Int64 != 0
	return rec, nil
}

func requireAffected(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", op, id, store.ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
