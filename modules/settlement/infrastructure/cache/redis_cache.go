package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/ports"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"github.com/redis/go-redis/v9"
)

const rateConfigKeyPrefix = "settlement:rate-config:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRateConfigCache stores typed rate configs as JSON, one key per tenant.
type RedisRateConfigCache struct {
	rdb redisClient
	ttl time.Duration
}

var _ ports.RateConfigCache = (*RedisRateConfigCache)(nil)

func NewRedisRateConfigCache(rdb redisClient, ttl time.Duration) *RedisRateConfigCache {
	return &RedisRateConfigCache{rdb: rdb, ttl: ttl}
}

func rateConfigKey(tenantID string) string {
	return rateConfigKeyPrefix + tenantID
}

func (c *RedisRateConfigCache) Get(ctx context.Context, tenantID string) (types.RateConfig, bool, error) {
	raw, err := c.rdb.Get(ctx, rateConfigKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.RateConfig{}, false, nil
	}
	if err != nil {
		return types.RateConfig{}, false, err
	}

	var cfg types.RateConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return types.RateConfig{}, false, err
	}
	return cfg, true, nil
}

func (c *RedisRateConfigCache) Set(ctx context.Context, tenantID string, cfg types.RateConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, rateConfigKey(tenantID), raw, c.ttl).Err()
}

func (c *RedisRateConfigCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.rdb.Del(ctx, rateConfigKey(tenantID)).Err()
}
