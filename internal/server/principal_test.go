package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testTenantID = "00000000-0000-0000-0000-0000000000a1"

func mustVerifier(t *testing.T) *TokenVerifier {
	t.Helper()
	v, err := NewTokenVerifier("test-secret", "hr-app")
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func mustToken(t *testing.T, v *TokenVerifier, p Principal) string {
	t.Helper()
	tok, err := v.IssueToken(p, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestNewTokenVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewTokenVerifier("  ", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := mustVerifier(t)
	tok := mustToken(t, v, Principal{ID: "u1", TenantID: testTenantID, RoleSlug: "payroll-operator", Email: "ops@example.com"})

	p, err := v.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "u1" || p.TenantID != testTenantID || p.RoleSlug != "payroll-operator" || p.Email != "ops@example.com" {
		t.Fatalf("p=%+v", p)
	}
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := mustVerifier(t)

	other, err := NewTokenVerifier("other-secret", "hr-app")
	if err != nil {
		t.Fatal(err)
	}
	wrongIssuer, err := NewTokenVerifier("test-secret", "someone-else")
	if err != nil {
		t.Fatal(err)
	}
	expired, err := v.IssueToken(Principal{ID: "u1", TenantID: testTenantID}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &PrincipalClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "hr-app"},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &PrincipalClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "hr-app", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"garbage":         "not-a-token",
		"wrong secret":    mustToken(t, other, Principal{ID: "u1", TenantID: testTenantID}),
		"wrong issuer":    mustToken(t, wrongIssuer, Principal{ID: "u1", TenantID: testTenantID}),
		"expired":         expired,
		"no expiry":       noExp,
		"wrong method":    hs512,
		"missing subject": mustToken(t, v, Principal{TenantID: testTenantID}),
	}
	for name, tok := range cases {
		if _, err := v.Verify(tok); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "", ok: false},
		{header: "Basic abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer   ", ok: false},
		{header: "bearer abc", want: "abc", ok: true},
		{header: " Bearer  xyz ", want: "xyz", ok: true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/payroll/api/rate-config", nil)
		r.Header.Set("Authorization", tc.header)
		got, ok := bearerToken(r)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("header=%q got=%q ok=%v", tc.header, got, ok)
		}
	}
}

func TestWithTenantAndPrincipal(t *testing.T) {
	v := mustVerifier(t)
	tenants := newStaticTenancyResolver(map[string]Tenant{"acme.localhost": {ID: testTenantID, Domain: "acme.localhost"}})

	var seen Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = currentPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := withTenantAndPrincipal(tenants, v, next)

	serve := func(host string, path string, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Host = host
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := serve("unknown.localhost", "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	if rec := serve("unknown.localhost", "/payroll/api/rate-config", ""); rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "tenant_not_found") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := serve("acme.localhost", "/payroll/api/rate-config", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status=%d", rec.Code)
	}

	foreign := mustToken(t, v, Principal{ID: "u1", TenantID: "00000000-0000-0000-0000-0000000000b2", RoleSlug: "tenant-admin"})
	if rec := serve("acme.localhost", "/payroll/api/rate-config", foreign); rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign tenant status=%d", rec.Code)
	}

	noRole := mustToken(t, v, Principal{ID: "u2", TenantID: testTenantID})
	if rec := serve("acme.localhost:8080", "/payroll/api/rate-config", noRole); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if seen.ID != "u2" || seen.RoleSlug != "anonymous" {
		t.Fatalf("principal=%+v", seen)
	}

	if rec := serve("acme.localhost", "/", ""); rec.Code != http.StatusOK {
		t.Fatalf("non-api status=%d", rec.Code)
	}
}

type errTenancyResolver struct{}

func (errTenancyResolver) ResolveTenant(context.Context, string) (Tenant, bool, error) {
	return Tenant{}, false, errors.New("db down")
}

func TestWithTenantAndPrincipal_ResolverError(t *testing.T) {
	h := withTenantAndPrincipal(errTenancyResolver{}, mustVerifier(t), http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payroll/api/rate-config", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
}
