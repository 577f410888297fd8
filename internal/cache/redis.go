package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	storefrontKeyPrefix = "storefront:"
	defaultCacheTTL     = 5 * time.Minute
)

// StorefrontCache caches the rendered storefront per price tier.
type StorefrontCache interface {
	Get(ctx context.Context, tier string, dst any) (bool, error)
	Set(ctx context.Context, tier string, v any) error
	Invalidate(ctx context.Context) error
}

type RedisStorefrontCache struct {
	client *redis.Client
	ttl    time.Duration
	tiers  []string
	logger *zap.SugaredLogger
}

// NewRedisClient connects and pings, so a bad address fails at startup.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func NewRedisStorefrontCache(client *redis.Client, ttl time.Duration, tiers []string, logger *zap.SugaredLogger) *RedisStorefrontCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisStorefrontCache{
		client: client,
		ttl:    ttl,
		tiers:  tiers,
		logger: logger,
	}
}

func (c *RedisStorefrontCache) Get(ctx context.Context, tier string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, storefrontKeyPrefix+tier).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.Warnw("cache get error", "tier", tier, "error", err)
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached storefront: %w", err)
	}
	return true, nil
}

func (c *RedisStorefrontCache) Set(ctx context.Context, tier string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, storefrontKeyPrefix+tier, data, c.ttl).Err(); err != nil {
		c.logger.Warnw("cache set error", "tier", tier, "error", err)
		return err
	}
	return nil
}

// Invalidate drops every tier; called whenever products, categories or stock change.
func (c *RedisStorefrontCache) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, len(c.tiers))
	for _, t := range c.tiers {
		keys = append(keys, storefrontKeyPrefix+t)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Nop never hits; used when REDIS_ADDR is empty.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any) error { return nil }
func (Nop) Invalidate(context.Context) error { return nil }
