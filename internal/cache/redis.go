// Package cache provides a Redis read-through layer in front of a document
// fetcher. It sits outside the core engine: the core's own per-call cache
// lives and dies with a single check or anonymize invocation, while this
// layer smooths repeated scope lookups across requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lectern/api/internal/doc"
	"lectern/api/internal/store"
)

// FetchCache wraps a Fetcher with a TTL-bounded Redis cache. Only documents
// are cached; not-found results always go back to the source.
type FetchCache struct {
	client *redis.Client
	inner  store.Fetcher
	ttl    time.Duration
	prefix string
}

// New connects to Redis and wraps inner.
func New(redisURL string, inner store.Fetcher, ttl time.Duration) (*FetchCache, error) {
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
	return NewWithClient(client, inner, ttl), nil
}

// NewWithClient wraps inner using an existing Redis client.
func NewWithClient(client *redis.Client, inner store.Fetcher, ttl time.Duration) *FetchCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &FetchCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		prefix: "doc:",
	}
}

func (c *FetchCache) key(id string) string {
	return c.prefix + id
}

// Fetch returns the cached document or falls through to the source. Cache
// errors other than a miss are not fatal: the source remains authoritative.
func (c *FetchCache) Fetch(ctx context.Context, id string) (doc.Doc, error) {
	body, err := c.client.Get(ctx, c.key(id)).Result()
	if err == nil {
		var d doc.Doc
		if jsonErr := json.Unmarshal([]byte(body), &d); jsonErr == nil {
			return d, nil
		}
		// Unreadable entry: drop it and refetch.
		c.client.Del(ctx, c.key(id))
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cache get %s: %w", id, err)
	}

	d, err := c.inner.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(d); err == nil {
		c.client.Set(ctx, c.key(id), encoded, c.ttl)
	}
	return d, nil
}

// Invalidate removes a document from the cache, by public id or storage
// key.
func (c *FetchCache) Invalidate(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
			return fmt.Errorf("cache del %s: %w", id, err)
		}
	}
	return nil
}

// Ping reports cache reachability.
func (c *FetchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *FetchCache) Close() error {
	return c.client.Close()
}
