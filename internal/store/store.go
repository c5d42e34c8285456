// Package store persists texts with their embeddings. Drivers register
// themselves by name; Open selects one from configuration.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Record is one stored text and its embedding. IDs start at 1 and are
// assigned by the store.
type Record struct {
	ID         int64
	Text       string
	Embedding  []float32
	IsQuestion bool
}

// Store is the embedding persistence contract.
type Store interface {
	// Insert stores a new record and returns its id.
	Insert(ctx context.Context, text string, embedding []float32, isQuestion bool) (int64, error)
	// Get returns the record with id or ErrNotFound.
	Get(ctx context.Context, id int64) (Record, error)
	// All returns every record ordered by id.
	All(ctx context.Context) ([]Record, error)
	// Update replaces the fields of an existing record or returns ErrNotFound.
	Update(ctx context.Context, rec Record) error
	// Delete removes a record or returns ErrNotFound.
	Delete(ctx context.Context, id int64) error
	// DeleteAll removes every record.
	DeleteAll(ctx context.Context) error
	// Count returns the number of records.
	Count(ctx context.Context) (int, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver string
	Path   string
}

// Factory creates a Store from a Config.
type Factory func(cfg Config) (Store, error)

var (
	drivers   = make(map[string]Factory)
	driversMu sync.RWMutex
)

// Register makes a driver available to Open. It panics on a nil factory or
// a duplicate name.
func Register(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if factory == nil {
		panic("store: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("store: Register called twice for driver " + name)
	}
	drivers[name] = factory
}

// Open creates a Store using the driver named in cfg.
func Open(cfg Config) (Store, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver: %s (available: %v)", cfg.Driver, Drivers())
	}
	return factory(cfg)
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeVector packs v as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a blob written by EncodeVector. Trailing bytes that do
// not form a whole float32 are ignored.
func DecodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// CloneVector returns a copy of v.
func CloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
