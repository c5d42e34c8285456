// Package memory provides an in-process Store for tests and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aixgo-dev/reasongraph/internal/store"
)

func init() {
	store.Register("memory", func(cfg store.Config) (store.Store, error) {
		return New(), nil
	})
}

// Store keeps records in a map. Returned records are deep copies.
type Store struct {
	mu      sync.RWMutex
	records map[int64]store.Record
	nextID  int64
	closed  bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		records: make(map[int64]store.Record),
		nextID:  1,
	}
}

// Insert stores a copy of embedding under the next id.
func (s *Store) Insert(ctx context.Context, text string, embedding []float32, isQuestion bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("memory store is closed")
	}

	id := s.nextID
	s.nextID++
	s.records[id] = store.Record{
		ID:         id,
		Text:       text,
		Embedding:  store.CloneVector(embedding),
		IsQuestion: isQuestion,
	}
	return id, nil
}

// Get returns a copy of the record with id, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return store.Record{}, fmt.Errorf("get %d: %w", id, store.ErrNotFound)
	}
	return copyRecord(rec), nil
}

// All returns copies of every record in id order.
func (s *Store) All(ctx context.Context) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update overwrites the record with rec.ID, or returns store.ErrNotFound.
func (s *Store) Update(ctx context.Context, rec store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return fmt.Errorf("update %d: %w", rec.ID, store.ErrNotFound)
	}
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

// Delete removes the record with id, or returns store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("delete %d: %w", id, store.ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

// DeleteAll clears the store. Ids keep increasing afterwards.
func (s *Store) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]store.Record)
	return nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Ping fails once the store is closed.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	return ctx.Err()
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyRecord(rec store.Record) store.Record {
	rec.Embedding = store.CloneVector(rec.Embedding)
	return rec
}
