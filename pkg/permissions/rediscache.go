package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisScopePrefix = "chapterkit:scopes"
	redisGenKey      = "chapterkit:scopes:gen"
)

// RedisScopeCache is a ScopeCache shared across instances. Entries are
// keyed by a generation counter; bumping the counter on invalidation
// orphans every cached entry at once and the TTL reaps them.
type RedisScopeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScopeCache creates a cache on the given client.
func NewRedisScopeCache(client *redis.Client, ttl time.Duration) *RedisScopeCache {
	if ttl <= 0 {
		ttl = DefaultScopeTTL
	}
	return &RedisScopeCache{client: client, ttl: ttl}
}

func (c *RedisScopeCache) key(ctx context.Context, user string) (string, error) {
	gen, err := c.client.Get(ctx, redisGenKey).Int64()
	if err == redis.Nil {
		gen = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", redisScopePrefix, gen, user), nil
}

// Get returns cached scopes. Any redis failure reads as a miss; the
// resolver falls through to the directory.
func (c *RedisScopeCache) Get(ctx context.Context, user string) (*Scopes, bool) {
	key, err := c.key(ctx, user)
	if err != nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var s Scopes
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// Set stores scopes under the current generation. Failures are
// dropped; the cache is an optimization, not a dependency.
func (c *RedisScopeCache) Set(ctx context.Context, user string, scopes *Scopes) {
	key, err := c.key(ctx, user)
	if err != nil {
		return
	}
	raw, err := json.Marshal(scopes)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}

// InvalidateAll bumps the generation counter, orphaning all entries.
func (c *RedisScopeCache) InvalidateAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, redisGenKey).Err(); err != nil {
		return fmt.Errorf("failed to bump scope generation: %w", err)
	}
	return nil
}
