// Package cache keeps the latest canvas state per canvas in Redis so reads
// between syncs skip object storage. Entries are best-effort: a miss or a
// cache failure falls through to the blob store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"easel/api/internal/canvas"
)

// ErrMiss is returned when no cached state exists for a canvas.
var ErrMiss = errors.New("state cache miss")

// StateCache stores serialized canvas states keyed by canvas id.
type StateCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStateCache connects to Redis and verifies the connection.
func NewStateCache(redisURL string, ttl time.Duration) (*StateCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &StateCache{client: client, prefix: "canvas:state:", ttl: ttl}, nil
}

// NewStateCacheWithClient creates a cache from an existing Redis client.
func NewStateCacheWithClient(client *redis.Client, ttl time.Duration) *StateCache {
	return &StateCache{client: client, prefix: "canvas:state:", ttl: ttl}
}

func (c *StateCache) key(canvasID string) string {
	return c.prefix + canvasID
}

// Put caches a canvas state, replacing any previous entry.
func (c *StateCache) Put(ctx context.Context, canvasID string, state canvas.State) error {
	payload, err := canvas.EncodeState(state)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(canvasID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache state %s: %w", canvasID, err)
	}
	return nil
}

// Get returns the cached state for a canvas, or ErrMiss.
func (c *StateCache) Get(ctx context.Context, canvasID string) (canvas.State, error) {
	payload, err := c.client.Get(ctx, c.key(canvasID)).Bytes()
	if err == redis.Nil {
		return canvas.State{}, ErrMiss
	}
	if err != nil {
		return canvas.State{}, fmt.Errorf("read cached state %s: %w", canvasID, err)
	}
	return canvas.DecodeState(payload)
}

// Invalidate drops the cached state for a canvas.
func (c *StateCache) Invalidate(ctx context.Context, canvasID string) error {
	if err := c.client.Del(ctx, c.key(canvasID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached state %s: %w", canvasID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *StateCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *StateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
