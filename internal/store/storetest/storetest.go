// Package storetest holds behavior tests shared by every store driver.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/reasongraph/internal/store"
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("InsertAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Insert(ctx, "What is 2+2?", []float32{0.1, 0.2}, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		rec, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "What is 2+2?", rec.Text)
		assert.Equal(t, []float32{0.1, 0.2}, rec.Embedding)
		assert.True(t, rec.IsQuestion)

		id2, err := s.Insert(ctx, "Step content", []float32{0.3, 0.4}, false)
		require.NoError(t, err)
		assert.Greater(t, id2, id)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), 42)
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("AllOrdered", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, text := range []string{"a", "b", "c"} {
			_, err := s.Insert(ctx, text, []float32{1}, false)
			require.NoError(t, err)
		}

		all, err := s.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, want := range []string{"a", "b", "c"} {
			assert.Equal(t, want, all[i].Text)
		}
		assert.Less(t, all[0].ID, all[1].ID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Insert(ctx, "old", []float32{1, 1}, false)
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, store.Record{ID: id, Text: "new", Embedding: []float32{2}, IsQuestion: true}))
		rec, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "new", rec.Text)
		assert.Equal(t, []float32{2}, rec.Embedding)
		assert.True(t, rec.IsQuestion)

		assert.True(t, errors.Is(s.Update(ctx, store.Record{ID: 999}), store.ErrNotFound))

		require.NoError(t, s.Delete(ctx, id))
		assert.True(t, errors.Is(s.Delete(ctx, id), store.ErrNotFound))
	})

	t.Run("DeleteAll", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := s.Insert(ctx, "x", []float32{1}, false)
			require.NoError(t, err)
		}

		require.NoError(t, s.DeleteAll(ctx))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("ReturnedVectorsAreCopies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		vec := []float32{1, 2, 3}
		id, err := s.Insert(ctx, "x", vec, false)
		require.NoError(t, err)
		vec[0] = 100

		rec, err := s.Get(ctx, id)
		require.NoError(t, err)
		rec.Embedding[1] = 200

		again, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, again.Embedding)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
