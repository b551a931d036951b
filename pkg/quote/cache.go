package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"omni-swap/pkg/types"
)

// Cache is the TTL-keyed quote store. Get returns (nil, nil) for a missing
// entry; expiry semantics live in the service, not here.
type Cache interface {
	Put(ctx context.Context, q *types.Quote, ttl time.Duration) error
	Get(ctx context.Context, id string) (*types.Quote, error)
	Delete(ctx context.Context, id string) error
}

const quoteKeyPrefix = "quote:"

// RedisCache stores quotes as JSON values under TTL-keyed entries
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache creates a Redis-backed quote cache
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Put(ctx context.Context, q *types.Quote, ttl time.Duration) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	if err := c.rdb.Set(ctx, quoteKeyPrefix+q.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store quote: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, id string) (*types.Quote, error) {
	data, err := c.rdb.Get(ctx, quoteKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quote: %w", err)
	}

	var q types.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &q, nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, quoteKeyPrefix+id).Err()
}
