package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Tenant struct {
	ID     string
	Domain string
	Name   string
}

// TenancyResolver maps the request host to the tenant whose payroll data the
// request may touch.
type TenancyResolver interface {
	ResolveTenant(ctx context.Context, hostname string) (Tenant, bool, error)
}

type staticTenancyResolver struct {
	tenants map[string]Tenant
}

func newStaticTenancyResolver(tenants map[string]Tenant) TenancyResolver {
	m := make(map[string]Tenant, len(tenants))
	for k, v := range tenants {
		m[normalizeHostname(k)] = v
	}
	return &staticTenancyResolver{tenants: m}
}

func (r *staticTenancyResolver) ResolveTenant(_ context.Context, hostname string) (Tenant, bool, error) {
	hostname = normalizeHostname(hostname)
	if hostname == "" {
		return Tenant{}, false, nil
	}
	t, ok := r.tenants[hostname]
	return t, ok, nil
}

// ParseTenantDomains reads a TENANT_DOMAINS value such as
// "acme.localhost=00000000-0000-0000-0000-000000000001,beta.localhost=...".
func ParseTenantDomains(raw string) (TenancyResolver, error) {
	tenants := make(map[string]Tenant)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		host, id, ok := strings.Cut(entry, "=")
		host = normalizeHostname(host)
		id = strings.TrimSpace(id)
		if !ok || host == "" || id == "" {
			return nil, fmt.Errorf("server: invalid TENANT_DOMAINS entry %q", entry)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("server: TENANT_DOMAINS entry %q: %w", entry, err)
		}
		tenants[host] = Tenant{ID: parsed.String(), Domain: host, Name: host}
	}
	if len(tenants) == 0 {
		return nil, errors.New("server: TENANT_DOMAINS is empty")
	}
	return newStaticTenancyResolver(tenants), nil
}

type tenancyDBResolver struct {
	q queryRower
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewTenancyDBResolver(pool *pgxpool.Pool) TenancyResolver {
	return &tenancyDBResolver{q: pool}
}

func (r *tenancyDBResolver) ResolveTenant(ctx context.Context, hostname string) (Tenant, bool, error) {
	hostname = normalizeHostname(hostname)
	if hostname == "" {
		return Tenant{}, false, nil
	}

	var tenantID string
	var tenantName string

	err := r.q.QueryRow(ctx, `
SELECT t.id::text, t.name
FROM iam.tenant_domains d
JOIN iam.tenants t ON t.id = d.tenant_id
WHERE d.hostname = $1
  AND t.is_active = true
LIMIT 1
`, hostname).Scan(&tenantID, &tenantName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, false, nil
		}
		return Tenant{}, false, err
	}
	return Tenant{ID: tenantID, Domain: hostname, Name: tenantName}, true, nil
}

// effectiveHost honors X-Forwarded-Host only behind a trusted proxy.
func effectiveHost(r *http.Request) string {
	if os.Getenv("TRUST_PROXY") == "1" {
		raw := strings.TrimSpace(r.Header.Get("X-Forwarded-Host"))
		if first, _, ok := strings.Cut(raw, ","); ok {
			raw = first
		}
		if h := normalizeHostname(raw); h != "" {
			return h
		}
	}
	return normalizeHostname(r.Host)
}

func normalizeHostname(host string) string {
	host = strings.TrimSpace(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return strings.ToLower(strings.TrimSpace(host))
}
