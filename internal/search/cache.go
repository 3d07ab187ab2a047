package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citydirectory/directory-backend/pkg/redis"
)

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SearchGenerationKey() string
	SearchCacheKey(generation, fingerprint string) string
}

// Cache keeps ranked, unshuffled result sets in Redis. Keys embed the listing
// generation, so bumping the generation orphans every entry at once and the
// TTL reclaims them.
type Cache struct {
	store cacheStore
	ttl   time.Duration
}

// NewCache returns nil when caching is disabled.
func NewCache(store cacheStore, ttl time.Duration) *Cache {
	if store == nil || ttl <= 0 {
		return nil
	}
	return &Cache{store: store, ttl: ttl}
}

// Load returns the cached set for fingerprint, nil on a miss, together with
// the generation it looked under. A result computed after the load must be
// stored under that generation: if listings changed meanwhile the set lands
// under the orphaned generation and is never read.
func (c *Cache) Load(ctx context.Context, fingerprint string) (*ResultSet, string, error) {
	generation, err := c.generation(ctx)
	if err != nil {
		return nil, "", err
	}
	raw, err := c.store.Get(ctx, c.store.SearchCacheKey(generation, fingerprint))
	if redis.IsMiss(err) {
		return nil, generation, nil
	}
	if err != nil {
		return nil, "", err
	}
	var rs ResultSet
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, "", fmt.Errorf("decode cached result set: %w", err)
	}
	return &rs, generation, nil
}

func (c *Cache) Store(ctx context.Context, generation, fingerprint string, rs *ResultSet) error {
	if generation == "" {
		return errors.New("cache generation is required")
	}
	payload, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encode result set: %w", err)
	}
	return c.store.Set(ctx, c.store.SearchCacheKey(generation, fingerprint), string(payload), c.ttl)
}

func (c *Cache) generation(ctx context.Context) (string, error) {
	generation, err := c.store.Get(ctx, c.store.SearchGenerationKey())
	if redis.IsMiss(err) {
		return "0", nil
	}
	return generation, err
}

// fingerprint identifies a query together with the settings that shape its rows.
func fingerprint(q Query, includeTest bool, maxResults int) string {
	raw := fmt.Sprintf("c=%s|s=%s|n=%s|city=%s|test=%t|max=%d",
		q.CategoryID, optionalID(q.SubcategoryID), optionalID(q.NeighborhoodID), q.CityID, includeTest, maxResults)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}
