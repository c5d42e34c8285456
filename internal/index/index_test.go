package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aixgo-dev/reasongraph/internal/store"
	"github.com/aixgo-dev/reasongraph/internal/store/memory"
)

func seed(t *testing.T, recs ...store.Record) *memory.Store {
	t.Helper()
	s := memory.New()
	for _, r := range recs {
		_, err := s.Insert(context.Background(), r.Text, r.Embedding, r.IsQuestion)
		require.NoError(t, err)
	}
	return s
}

func TestNearest(t *testing.T) {
	src := seed(t,
		store.Record{Text: "east", Embedding: []float32{1, 0, 0}, IsQuestion: true},
		store.Record{Text: "north", Embedding: []float32{0, 1, 0}},
		store.Record{Text: "north-east", Embedding: []float32{1, 1, 0}},
		store.Record{Text: "west", Embedding: []float32{-1, 0, 0}},
	)

	ix := New(3, nil)
	indexed, skipped, err := ix.Build(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 4, indexed)
	assert.Equal(t, 0, skipped)

	results, err := ix.Nearest([]float32{2, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "east", results[0].Text)
	assert.Equal(t, int64(1), results[0].ID)
	assert.True(t, results[0].IsQuestion)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)

	assert.Equal(t, "north-east", results[1].Text)
	assert.InDelta(t, 1-math.Sqrt(2*(1-math.Sqrt2/2)), results[1].Similarity, 1e-9)

	assert.Equal(t, "north", results[2].Text)
	assert.InDelta(t, 1-math.Sqrt2, results[2].Similarity, 1e-9)
}

func TestNearest_KLargerThanIndex(t *testing.T) {
	src := seed(t, store.Record{Text: "only", Embedding: []float32{0, 1}})
	ix := New(2, nil)
	_, _, err := ix.Build(context.Background(), src)
	require.NoError(t, err)

	results, err := ix.Nearest([]float32{0, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = ix.Nearest([]float32{0, 1}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNearest_Errors(t *testing.T) {
	ix := New(2, nil)

	_, err := ix.Nearest([]float32{1, 0}, 1)
	assert.True(t, errors.Is(err, ErrNotBuilt))

	_, err = ix.Nearest([]float32{1, 0, 0}, 1)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestBuild_SkipsMismatchedDimensions(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := seed(t,
		store.Record{Text: "ok", Embedding: []float32{1, 0}},
		store.Record{Text: "short", Embedding: []float32{1}},
		store.Record{Text: "empty"},
	)

	ix := New(2, zap.New(core))
	indexed, skipped, err := ix.Build(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, indexed)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 2, logs.FilterMessage("skipping embedding with unexpected size").Len())
}

func TestBuild_Replaces(t *testing.T) {
	src := seed(t, store.Record{Text: "a", Embedding: []float32{1, 0}})
	ix := New(2, nil)
	_, _, err := ix.Build(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, src.DeleteAll(context.Background()))
	_, _, err = ix.Build(context.Background(), src)
	require.NoError(t, err)

	results, err := ix.Nearest([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

type failingSource struct{}

func (failingSource) All(ctx context.Context) ([]store.Record, error) {
	return nil, errors.New("disk gone")
}

func TestBuild_SourceError(t *testing.T) {
	ix := New(2, nil)
	_, _, err := ix.Build(context.Background(), failingSource{})
	assert.ErrorContains(t, err, "disk gone")

	_, err = ix.Nearest([]float32{1, 0}, 1)
	assert.True(t, errors.Is(err, ErrNotBuilt))
}

func TestAngularSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, AngularSimilarity(1), 1e-12)
	assert.InDelta(t, 1-math.Sqrt2, AngularSimilarity(0), 1e-12)
	assert.InDelta(t, -1.0, AngularSimilarity(-1), 1e-12)
	assert.InDelta(t, 1.0, AngularSimilarity(1.0000001), 1e-12)
}

func TestNearest_TiesOrderedByID(t *testing.T) {
	src := seed(t,
		store.Record{Text: "first", Embedding: []float32{0, 1}},
		store.Record{Text: "second", Embedding: []float32{0, 2}},
	)
	ix := New(2, nil)
	_, _, err := ix.Build(context.Background(), src)
	require.NoError(t, err)

	results, err := ix.Nearest([]float32{0, 3}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
}
