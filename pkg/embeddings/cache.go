// Package embeddings provides a Redis-backed cache in front of an embedding
// backend.
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aixgo-dev/reasongraph/internal/store"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "reasongraph:embed:"

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CacheConfig holds Redis connection configuration.
type CacheConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for cached vectors.
	Prefix string
	// TTL is the entry expiry (0 = never expire).
	TTL time.Duration
}

// CachedEmbedder serves repeated texts from Redis. Cache failures are logged
// and never fail an Embed call.
type CachedEmbedder struct {
	next   Embedder
	model  string
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedEmbedder connects to Redis and wraps next. model is part of every
// key so switching models never serves stale vectors.
func NewCachedEmbedder(next Embedder, model string, cfg CacheConfig, logger *zap.Logger) (*CachedEmbedder, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewCachedEmbedderFromClient(next, model, client, cfg.Prefix, cfg.TTL, logger), nil
}

// NewCachedEmbedderFromClient wraps next using an existing client.
func NewCachedEmbedderFromClient(next Embedder, model string, client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		next:   next,
		model:  model,
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Embed returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil && len(data) > 0:
		return store.DecodeVector(data), nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.Warn("embedding cache read failed", zap.String("key", key), zap.Error(err))
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.client.Set(ctx, key, store.EncodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
	return vec, nil
}

// Ping checks the Redis connection.
func (c *CachedEmbedder) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *CachedEmbedder) Close() error {
	return c.client.Close()
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return c.prefix + hex.EncodeToString(sum[:])
}
