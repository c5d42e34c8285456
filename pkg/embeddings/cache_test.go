package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 0.5}, nil
}

func setupMiniredis(t *testing.T, next Embedder, ttl time.Duration) (*miniredis.Miniredis, *CachedEmbedder) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cache := NewCachedEmbedderFromClient(next, "llama3.1", client, "test:", ttl, nil)
	t.Cleanup(func() {
		_ = cache.Close()
	})
	return mr, cache
}

func TestCachedEmbedder_HitAfterMiss(t *testing.T) {
	next := &countingEmbedder{}
	mr, cache := setupMiniredis(t, next, 0)
	ctx := context.Background()

	first, err := cache.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := cache.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, []float32{5, 0.5}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.Len(t, mr.Keys(), 1)
	assert.Contains(t, mr.Keys()[0], "test:")
}

func TestCachedEmbedder_KeyIncludesModel(t *testing.T) {
	next := &countingEmbedder{}
	mr, cache := setupMiniredis(t, next, 0)

	other := NewCachedEmbedderFromClient(next, "other-model", cache.client, "test:", 0, nil)

	_, err := cache.Embed(context.Background(), "same text")
	require.NoError(t, err)
	_, err = other.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, 2, next.calls)
	assert.Len(t, mr.Keys(), 2)
}

func TestCachedEmbedder_TTL(t *testing.T) {
	next := &countingEmbedder{}
	mr, cache := setupMiniredis(t, next, time.Minute)

	_, err := cache.Embed(context.Background(), "expires")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Embed(context.Background(), "expires")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedEmbedder_BackendError(t *testing.T) {
	next := &countingEmbedder{err: errors.New("model offline")}
	mr, cache := setupMiniredis(t, next, 0)

	_, err := cache.Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "model offline")
	assert.Empty(t, mr.Keys())
}

func TestCachedEmbedder_RedisDown(t *testing.T) {
	next := &countingEmbedder{}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})

	core, logs := observer.New(zap.WarnLevel)
	cache := NewCachedEmbedderFromClient(next, "m", client, "", 0, zap.New(core))
	mr.Close()

	vec, err := cache.Embed(context.Background(), "still works")
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 0.5}, vec)
	assert.Equal(t, 1, logs.FilterMessage("embedding cache read failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("embedding cache write failed").Len())
	assert.Error(t, cache.Ping(context.Background()))
}

func TestNewCachedEmbedder(t *testing.T) {
	_, err := NewCachedEmbedder(&countingEmbedder{}, "m", CacheConfig{}, nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	cache, err := NewCachedEmbedder(&countingEmbedder{}, "m", CacheConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	assert.Equal(t, DefaultPrefix, cache.prefix)
	assert.NoError(t, cache.Ping(context.Background()))
}
