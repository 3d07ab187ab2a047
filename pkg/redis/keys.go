package redis

import (
	"context"
	"strings"
)

// Every key this service writes lives under keyNamespace.
const (
	keyNamespace    = "cd"
	rateLimitPrefix = "rate_limit"
	counterPrefix   = "counter"
	searchPrefix    = "search"
	lockPrefix      = "lock"
)

// RateLimitKey returns a namespaced key for rate limit counters.
func (c *Client) RateLimitKey(scope string) string {
	return c.buildKey(rateLimitPrefix, scope)
}

// CounterKey returns a namespaced key for counters.
func (c *Client) CounterKey(name string) string {
	return c.buildKey(counterPrefix, name)
}

// LockKey returns a namespaced key for worker locks.
func (c *Client) LockKey(name string) string {
	return c.buildKey(lockPrefix, name)
}

// SearchGenerationKey holds the counter bumped whenever listings change.
func (c *Client) SearchGenerationKey() string {
	return c.buildKey(searchPrefix, "generation")
}

// BumpSearchGeneration orphans every cached search result set.
func (c *Client) BumpSearchGeneration(ctx context.Context) error {
	_, err := c.Incr(ctx, c.SearchGenerationKey())
	return err
}

// SearchCacheKey scopes a cached result set to a listing generation.
func (c *Client) SearchCacheKey(generation, fingerprint string) string {
	return c.buildKey(searchPrefix, "v"+generation, fingerprint)
}

func (c *Client) buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
