// Package index answers nearest-neighbor queries over stored embeddings.
//
// The index is exact: every query scans all vectors. Scores use the angular
// metric, similarity = 1 - sqrt(2*(1-cos)), so results are comparable with
// annoy-style angular indexes built over the same data.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/aixgo-dev/reasongraph/internal/store"
)

var (
	// ErrNotBuilt is returned by Nearest before the first successful Build.
	ErrNotBuilt = errors.New("index not built")

	// ErrDimensionMismatch is returned when a query vector has the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Source supplies the records an index is built from.
type Source interface {
	All(ctx context.Context) ([]store.Record, error)
}

// Result is one nearest-neighbor hit.
type Result struct {
	ID         int64   `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	IsQuestion bool    `json:"is_question"`
}

type entry struct {
	id         int64
	text       string
	isQuestion bool
	unit       []float64
}

// Index is safe for concurrent use. Build swaps the contents atomically.
type Index struct {
	dims   int
	logger *zap.Logger

	mu      sync.RWMutex
	entries []entry
	built   bool
}

// New creates an index over vectors of dims dimensions.
func New(dims int, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{dims: dims, logger: logger}
}

// Dimensions returns the vector size the index accepts.
func (ix *Index) Dimensions() int {
	return ix.dims
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Build replaces the index contents with every record from src whose
// embedding has the configured dimension. Returns the number indexed and the
// number skipped.
func (ix *Index) Build(ctx context.Context, src Source) (indexed, skipped int, err error) {
	records, err := src.All(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load records: %w", err)
	}

	entries := make([]entry, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) != ix.dims {
			ix.logger.Warn("skipping embedding with unexpected size",
				zap.Int64("id", rec.ID),
				zap.Int("expected", ix.dims),
				zap.Int("got", len(rec.Embedding)))
			skipped++
			continue
		}
		entries = append(entries, entry{
			id:         rec.ID,
			text:       rec.Text,
			isQuestion: rec.IsQuestion,
			unit:       normalize(rec.Embedding),
		})
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.built = true
	ix.mu.Unlock()

	ix.logger.Debug("index built", zap.Int("indexed", len(entries)), zap.Int("skipped", skipped))
	return len(entries), skipped, nil
}

// Nearest returns up to k records closest to query, most similar first.
// Equal scores are ordered by id.
func (ix *Index) Nearest(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dims {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, ix.dims, len(query))
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.built {
		return nil, ErrNotBuilt
	}
	if k <= 0 || len(ix.entries) == 0 {
		return []Result{}, nil
	}

	q := normalize(query)
	results := make([]Result, 0, len(ix.entries))
	for _, e := range ix.entries {
		results = append(results, Result{
			ID:         e.id,
			Text:       e.text,
			Similarity: AngularSimilarity(dot(q, e.unit)),
			IsQuestion: e.isQuestion,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// AngularSimilarity converts a cosine into 1 - angular distance.
func AngularSimilarity(cos float64) float64 {
	cos = math.Max(-1, math.Min(1, cos))
	return 1 - math.Sqrt(2*(1-cos))
}

// normalize returns v scaled to unit length. Zero vectors stay zero.
func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for i, f := range v {
		out[i] = float64(f)
		norm += out[i] * out[i]
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] /= norm
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
