package persistence

import (
	"context"
	"strings"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/ports"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
)

type RateSettingPGStore struct {
	pool pgBeginner
}

var _ ports.RateSettingStore = (*RateSettingPGStore)(nil)

func NewRateSettingPGStore(pool pgBeginner) *RateSettingPGStore {
	return &RateSettingPGStore{pool: pool}
}

func (s *RateSettingPGStore) ListRateSettings(ctx context.Context, tenantID string, keyPrefixes []string) ([]types.RateSetting, error) {
	tx, err := beginTenantTx(ctx, s.pool, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	patterns := make([]string, 0, len(keyPrefixes))
	for _, p := range keyPrefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		patterns = append(patterns, escapeLike(p)+"%")
	}

	rows, err := tx.Query(ctx, `
	SELECT key, value
	FROM payroll.rate_settings
	WHERE tenant_id = $1::uuid
	  AND (cardinality($2::text[]) = 0 OR upper(key) LIKE ANY ($2::text[]))
	ORDER BY key ASC
	`, tenantID, patterns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.RateSetting{}
	for rows.Next() {
		var r types.RateSetting
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertRateSettings writes tenant overrides. dbtool seed-rates uses it to
// materialize the built-in defaults for a tenant.
func (s *RateSettingPGStore) UpsertRateSettings(ctx context.Context, tenantID string, settings []types.RateSetting) error {
	tx, err := beginTenantTx(ctx, s.pool, tenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	for _, r := range settings {
		if _, err := tx.Exec(ctx, `
		INSERT INTO payroll.rate_settings (tenant_id, key, value)
		VALUES ($1::uuid, $2::text, $3::text)
		ON CONFLICT (tenant_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		`, tenantID, strings.ToUpper(strings.TrimSpace(r.Key)), strings.TrimSpace(r.Value)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
