package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON payloads in redis with a fixed TTL. A nil Cache or a
// Cache without a client is a no-op, so browse endpoints degrade to
// uncached reads when redis is unavailable.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func keyBrowse() string { return "catalog:browse:front" }

func keyDetail(slug string) string { return "catalog:detail:" + slug }

// GetJSON loads key into dst and reports whether it existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.R == nil || key == "" {
		return false, nil
	}
	data, err := c.R.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for the configured TTL. Write failures are
// returned so callers can log them; cached reads never fail the request.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.R == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return c.R.Set(ctx, key, data, ttl).Err()
}
