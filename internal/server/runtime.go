package server

import (
	"context"
	"errors"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/ports"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/infrastructure/cache"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/infrastructure/persistence"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/services"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateSettingWriter stores tenant rate rows.
type RateSettingWriter interface {
	UpsertRateSettings(ctx context.Context, tenantID string, settings []types.RateSetting) error
}

// Runtime owns the settlement service and the connections behind it.
type Runtime struct {
	Service      *services.SettlementService
	RateSettings RateSettingWriter
	Memory       *persistence.MemoryStore

	pool  *pgxpool.Pool
	redis *redis.Client
}

func OpenRuntime(ctx context.Context, cfg Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults, err := services.LoadRateDefaults(cfg.RateDefaultsPath)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{}
	var store ports.SettlementStore
	var rateStore ports.RateSettingStore
	if cfg.UseMemoryStore() {
		rt.Memory = persistence.NewMemoryStore()
		store, rateStore, rt.RateSettings = rt.Memory, rt.Memory, rt.Memory
		logger.Warn("using in-memory settlement store; data is lost on exit")
	} else {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		rates := persistence.NewRateSettingPGStore(pool)
		store, rateStore, rt.RateSettings = persistence.NewSettlementPGStore(pool), rates, rates
	}

	var rateCache ports.RateConfigCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.redis = redis.NewClient(opts)
		rateCache = cache.NewRedisRateConfigCache(rt.redis, cfg.RateConfigCacheTTL)
	} else {
		rateCache = cache.NewMemoryRateConfigCache(cfg.RateConfigCacheTTL)
	}

	loader := services.NewRateConfigLoader(rateStore, rateCache, defaults, logger)
	rt.Service = services.NewSettlementService(store, loader, logger)
	return rt, nil
}

// TenancyResolver prefers the static TENANT_DOMAINS list and falls back to
// the iam tables.
func (rt *Runtime) TenancyResolver(cfg Config) (TenancyResolver, error) {
	if cfg.TenantDomains != "" {
		return ParseTenantDomains(cfg.TenantDomains)
	}
	if rt.pool == nil {
		return nil, errors.New("server: TENANT_DOMAINS is required with the memory store")
	}
	return NewTenancyDBResolver(rt.pool), nil
}

// Health returns the database pinger, or nil for the memory store.
func (rt *Runtime) Health() Pinger {
	if rt.pool == nil {
		return nil
	}
	return rt.pool
}

func (rt *Runtime) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}
