package ports

import (
	"context"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
)

type RateSettingStore interface {
	ListRateSettings(ctx context.Context, tenantID string, keyPrefixes []string) ([]types.RateSetting, error)
}

type RateConfigCache interface {
	Get(ctx context.Context, tenantID string) (types.RateConfig, bool, error)
	Set(ctx context.Context, tenantID string, cfg types.RateConfig) error
	Invalidate(ctx context.Context, tenantID string) error
}
