package cache

import (
	"context"
	"sync"
	"time"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/ports"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
)

type memoryEntry struct {
	cfg       types.RateConfig
	expiresAt time.Time
}

// MemoryRateConfigCache is the process-local cache used when no Redis is
// configured. A ttl <= 0 keeps entries until invalidated. Entries are copied
// in and out so no caller shares the cached rate tables.
type MemoryRateConfigCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

var _ ports.RateConfigCache = (*MemoryRateConfigCache)(nil)

func NewMemoryRateConfigCache(ttl time.Duration) *MemoryRateConfigCache {
	return &MemoryRateConfigCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryRateConfigCache) Get(_ context.Context, tenantID string) (types.RateConfig, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if !ok {
		return types.RateConfig{}, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, tenantID)
		c.mu.Unlock()
		return types.RateConfig{}, false, nil
	}
	return e.cfg.Clone(), true, nil
}

func (c *MemoryRateConfigCache) Set(_ context.Context, tenantID string, cfg types.RateConfig) error {
	e := memoryEntry{cfg: cfg.Clone()}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[tenantID] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryRateConfigCache) Invalidate(_ context.Context, tenantID string) error {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
	return nil
}
