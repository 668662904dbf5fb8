package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/ports"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/bpjs"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/money"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/pph21"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	PTKPKeyPrefix      = "PTKP_"
	BracketKeyPrefix   = "BRACKET_"
	InsuranceKeyPrefix = "BPJS_"

	keyKesehatanEmployeeRate = "BPJS_KESEHATAN_EMPLOYEE_RATE"
	keyKesehatanCompanyRate  = "BPJS_KESEHATAN_COMPANY_RATE"
	keyKesehatanSalaryCap    = "BPJS_KESEHATAN_SALARY_CAP"
	keyJHTEmployeeRate       = "BPJS_JHT_EMPLOYEE_RATE"
	keyJHTCompanyRate        = "BPJS_JHT_COMPANY_RATE"
	keyJPEmployeeRate        = "BPJS_JP_EMPLOYEE_RATE"
	keyJPCompanyRate         = "BPJS_JP_COMPANY_RATE"
	keyJPSalaryCap           = "BPJS_JP_SALARY_CAP"
	keyJKKRatePrefix         = "BPJS_JKK_RATE_"
	keyJKMCompanyRate        = "BPJS_JKM_COMPANY_RATE"
)

var RateKeyPrefixes = []string{PTKPKeyPrefix, BracketKeyPrefix, InsuranceKeyPrefix}

// RateConfigLoader turns flat tenant rate settings into a typed RateConfig.
// Results are cached per tenant until Invalidate is called or the cache
// expires them.
type RateConfigLoader struct {
	store    ports.RateSettingStore
	cache    ports.RateConfigCache
	defaults []types.RateSetting
	now      func() time.Time
	logger   *zap.Logger
}

func NewRateConfigLoader(store ports.RateSettingStore, cache ports.RateConfigCache, defaults []types.RateSetting, logger *zap.Logger) *RateConfigLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateConfigLoader{
		store:    store,
		cache:    cache,
		defaults: defaults,
		now:      time.Now,
		logger:   logger,
	}
}

func (l *RateConfigLoader) Load(ctx context.Context, tenantID string) (types.RateConfig, error) {
	if l.cache != nil {
		cfg, ok, err := l.cache.Get(ctx, tenantID)
		if err != nil {
			l.logger.Warn("rate config cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
		} else if ok {
			return cfg, nil
		}
	}

	rows, err := l.store.ListRateSettings(ctx, tenantID, RateKeyPrefixes)
	if err != nil {
		return types.RateConfig{}, err
	}

	cfg, ignored, err := BuildRateConfig(tenantID, l.defaults, rows)
	if err != nil {
		return types.RateConfig{}, err
	}
	for _, key := range ignored {
		l.logger.Warn("rate setting ignored after unbounded bracket", zap.String("tenant_id", tenantID), zap.String("key", key))
	}
	cfg.LoadedAt = l.now().UTC()

	if l.cache != nil {
		if err := l.cache.Set(ctx, tenantID, cfg); err != nil {
			l.logger.Warn("rate config cache write failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return cfg, nil
}

func (l *RateConfigLoader) Invalidate(ctx context.Context, tenantID string) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Invalidate(ctx, tenantID)
}

// BuildRateConfig merges tenant rows over defaults and parses the result.
// It also returns bracket keys that were ignored because they follow the
// unbounded bracket.
func BuildRateConfig(tenantID string, defaults []types.RateSetting, rows []types.RateSetting) (types.RateConfig, []string, error) {
	merged := make(map[string]string, len(defaults)+len(rows))
	tenantHasBrackets := false
	for _, r := range rows {
		if strings.HasPrefix(normalizeKey(r.Key), BracketKeyPrefix) {
			tenantHasBrackets = true
			break
		}
	}
	for _, r := range defaults {
		key := normalizeKey(r.Key)
		if tenantHasBrackets && strings.HasPrefix(key, BracketKeyPrefix) {
			continue
		}
		merged[key] = r.Value
	}
	var sources []string
	for _, r := range rows {
		key := normalizeKey(r.Key)
		merged[key] = r.Value
		sources = append(sources, key)
	}
	sort.Strings(sources)

	ptkp, err := parsePTKP(merged)
	if err != nil {
		return types.RateConfig{}, nil, err
	}
	brackets, ignored, err := parseBrackets(merged)
	if err != nil {
		return types.RateConfig{}, nil, err
	}
	if len(brackets) == 0 {
		return types.RateConfig{}, nil, fmt.Errorf("%w: no %s settings", types.ErrConfigurationMissing, BracketKeyPrefix)
	}
	insurance, err := parseInsurance(merged)
	if err != nil {
		return types.RateConfig{}, nil, err
	}

	return types.RateConfig{
		TenantID:  tenantID,
		Tax:       pph21.Config{PTKP: ptkp, Brackets: brackets},
		Insurance: insurance,
		Sources:   sources,
	}, ignored, nil
}

func normalizeKey(k string) string {
	return strings.ToUpper(strings.TrimSpace(k))
}

func parseValue(settings map[string]string, key string) (decimal.Decimal, error) {
	raw, ok := settings[key]
	if !ok {
		return money.Zero, fmt.Errorf("%w: %s", types.ErrConfigurationMissing, key)
	}
	v, err := money.Parse(raw)
	if err != nil {
		return money.Zero, fmt.Errorf("%w: %s: %v", types.ErrConfigurationMissing, key, err)
	}
	if v.IsNegative() {
		return money.Zero, fmt.Errorf("%w: %s is negative", types.ErrConfigurationMissing, key)
	}
	return v, nil
}

func parsePTKP(settings map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for key := range settings {
		if !strings.HasPrefix(key, PTKPKeyPrefix) {
			continue
		}
		v, err := parseValue(settings, key)
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(key, PTKPKeyPrefix)] = v
	}
	return out, nil
}

type bracketKeys struct {
	limitKey string
	rateKey  string
}

// parseBrackets rebuilds BRACKET_<n>_LIMIT / BRACKET_<n>_RATE pairs ordered
// by n. A missing LIMIT marks the unbounded bracket, kept only when its RATE
// exists; a missing RATE is 0.
func parseBrackets(settings map[string]string) ([]pph21.Bracket, []string, error) {
	byIndex := make(map[int]*bracketKeys)
	for key := range settings {
		if !strings.HasPrefix(key, BracketKeyPrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, BracketKeyPrefix)
		idx, field, ok := strings.Cut(rest, "_")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(idx)
		if err != nil || n < 1 {
			continue
		}
		entry := byIndex[n]
		if entry == nil {
			entry = &bracketKeys{}
			byIndex[n] = entry
		}
		switch field {
		case "LIMIT":
			entry.limitKey = key
		case "RATE":
			entry.rateKey = key
		}
	}

	indexes := make([]int, 0, len(byIndex))
	for n := range byIndex {
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)

	var out []pph21.Bracket
	var ignored []string
	unbounded := false
	for _, n := range indexes {
		entry := byIndex[n]
		if unbounded {
			for _, k := range []string{entry.limitKey, entry.rateKey} {
				if k != "" {
					ignored = append(ignored, k)
				}
			}
			continue
		}

		rate := money.Zero
		if entry.rateKey != "" {
			v, err := parseValue(settings, entry.rateKey)
			if err != nil {
				return nil, nil, err
			}
			rate = v
		}

		if entry.limitKey == "" {
			if entry.rateKey == "" {
				continue
			}
			out = append(out, pph21.Bracket{Rate: rate})
			unbounded = true
			continue
		}

		limit, err := parseValue(settings, entry.limitKey)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, pph21.Bracket{UpperBound: &limit, Rate: rate})
	}
	return out, ignored, nil
}

func parseInsurance(settings map[string]string) (bpjs.Config, error) {
	var cfg bpjs.Config
	scalars := []struct {
		key string
		dst *decimal.Decimal
	}{
		{key: keyKesehatanEmployeeRate, dst: &cfg.KesehatanEmployeeRate},
		{key: keyKesehatanCompanyRate, dst: &cfg.KesehatanCompanyRate},
		{key: keyKesehatanSalaryCap, dst: &cfg.KesehatanSalaryCap},
		{key: keyJHTEmployeeRate, dst: &cfg.JHTEmployeeRate},
		{key: keyJHTCompanyRate, dst: &cfg.JHTCompanyRate},
		{key: keyJPEmployeeRate, dst: &cfg.JPEmployeeRate},
		{key: keyJPCompanyRate, dst: &cfg.JPCompanyRate},
		{key: keyJPSalaryCap, dst: &cfg.JPSalaryCap},
		{key: keyJKMCompanyRate, dst: &cfg.JKMCompanyRate},
	}
	for _, s := range scalars {
		v, err := parseValue(settings, s.key)
		if err != nil {
			return bpjs.Config{}, err
		}
		*s.dst = v
	}

	cfg.JKKRates = make(map[bpjs.RiskCategory]decimal.Decimal)
	for key := range settings {
		if !strings.HasPrefix(key, keyJKKRatePrefix) {
			continue
		}
		v, err := parseValue(settings, key)
		if err != nil {
			return bpjs.Config{}, err
		}
		cfg.JKKRates[bpjs.NormalizeRiskCategory(strings.TrimPrefix(key, keyJKKRatePrefix))] = v
	}
	if len(cfg.JKKRates) == 0 {
		return bpjs.Config{}, fmt.Errorf("%w: no %s settings", types.ErrConfigurationMissing, keyJKKRatePrefix)
	}
	return cfg, nil
}
