package platforms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/search"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

// cachedProvider wraps a platform adapter with a short-lived Redis cache so
// repeated queries (saved monitor runs, dashboard refreshes) do not burn
// upstream API quota. Cache problems are logged and ignored; the wrapped
// provider is always the source of truth.
type cachedProvider struct {
	inner  search.Provider
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// WithCache wraps each provider with a Redis result cache. A nil client or
// non-positive TTL returns the providers unchanged.
func WithCache(providers []search.Provider, rdb *redis.Client, ttl time.Duration) []search.Provider {
	if rdb == nil || ttl <= 0 {
		return providers
	}
	logger := log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	out := make([]search.Provider, len(providers))
	for i, p := range providers {
		out[i] = &cachedProvider{inner: p, rdb: rdb, ttl: ttl, logger: logger}
	}
	return out
}

func (c *cachedProvider) Platform() models.Platform { return c.inner.Platform() }
func (c *cachedProvider) Configured() bool          { return c.inner.Configured() }

func (c *cachedProvider) Search(ctx context.Context, query string, opts models.Options) (models.Result, error) {
	key := c.cacheKey(query, opts)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached models.Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.logger.Printf("discarding corrupt cache entry %s", key)
	} else if err != redis.Nil {
		c.logger.Printf("cache read failed for %s: %v", key, err)
	}

	result, err := c.inner.Search(ctx, query, opts)
	if err != nil {
		return result, err
	}
	if raw, merr := json.Marshal(result); merr == nil {
		if serr := c.rdb.Set(ctx, key, raw, c.ttl).Err(); serr != nil {
			c.logger.Printf("cache write failed for %s: %v", key, serr)
		}
	}
	return result, nil
}

func (c *cachedProvider) cacheKey(query string, opts models.Options) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", query, opts.TimeFilter, opts.Language, opts.MaxResults)))
	return fmt.Sprintf("civic:results:%s:%s", c.inner.Platform(), hex.EncodeToString(sum[:8]))
}
