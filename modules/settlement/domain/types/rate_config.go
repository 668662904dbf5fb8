package types

import (
	"slices"
	"time"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/bpjs"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/pph21"
)

// RateConfig is the typed, per-tenant rate table used by one calculation.
type RateConfig struct {
	TenantID  string       `json:"tenant_id"`
	Tax       pph21.Config `json:"tax"`
	Insurance bpjs.Config  `json:"insurance"`
	// Sources lists the setting keys that came from tenant rows rather than
	// defaults.
	Sources  []string  `json:"sources"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Clone deep-copies the rate tables so callers can hold the result without
// aliasing a cached entry.
func (c RateConfig) Clone() RateConfig {
	out := c
	out.Tax = c.Tax.Clone()
	out.Insurance = c.Insurance.Clone()
	out.Sources = slices.Clone(c.Sources)
	return out
}
