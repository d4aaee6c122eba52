// Package rediscache caches catalog-tool responses (get_record_types,
// list_searches) across concurrently running task nodes, grounded on the
// teacher's use of github.com/redis/go-redis/v9 in
// features/stream/pulse/clients/pulse and registry/service.go.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CatalogCache wraps a redis client with a short TTL suited to catalog
// lookups: record types and search lists change on a deploy cadence, not a
// per-request one, so sibling task nodes running concurrently under the
// scheduler's bounded concurrency can share one fetch.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a CatalogCache over client with the given TTL.
func New(client *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogCache{client: client, ttl: ttl}
}

// GetOrFetch returns the cached value for key, or calls fetch, caches, and
// returns its result.
func (c *CatalogCache) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var v any
		if jsonErr := json.Unmarshal(cached, &v); jsonErr == nil {
			return v, nil
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(v); err == nil {
		_ = c.client.Set(ctx, key, encoded, c.ttl).Err()
	}
	return v, nil
}

// Invalidate drops a cached key, used after strategy-mutation tools change
// the catalog a sub-agent might re-query (rare, but rename_step /
// create_step can introduce new searchable state in some deployments).
func (c *CatalogCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
