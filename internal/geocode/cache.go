package geocode

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "geocode:"

// CachedResolver memoizes successful lookups in Redis. Cache trouble never
// fails a lookup; it just falls through to the inner resolver.
type CachedResolver struct {
	inner Resolver
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedResolver(inner Resolver, rc *redis.Client, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, redis: rc, ttl: ttl}
}

func (c *CachedResolver) Resolve(ctx context.Context, text string) (*Result, error) {
	key := cacheKeyPrefix + strings.ToLower(strings.TrimSpace(text))
	if raw, err := c.redis.Get(ctx, key).Result(); err == nil {
		var res Result
		if json.Unmarshal([]byte(raw), &res) == nil {
			return &res, nil
		}
	}

	res, err := c.inner.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(res); err == nil {
		_ = c.redis.Set(ctx, key, b, c.ttl).Err()
	}
	return res, nil
}
