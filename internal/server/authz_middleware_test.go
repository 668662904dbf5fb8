package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/authz"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubAuthorizer struct {
	allowed  bool
	enforced bool
	err      error

	gotSubject string
	gotDomain  string
	gotObject  string
	gotAction  string
}

func (a *stubAuthorizer) Authorize(subject string, domain string, object string, action string) (bool, bool, error) {
	a.gotSubject, a.gotDomain, a.gotObject, a.gotAction = subject, domain, object, action
	return a.allowed, a.enforced, a.err
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func guardedRequest(method string, path string, p *Principal) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	ctx := withTenant(req.Context(), Tenant{ID: "T1", Domain: "acme.localhost"})
	if p != nil {
		ctx = withPrincipal(ctx, *p)
	}
	return req.WithContext(ctx)
}

func TestAuthzRequirementForRoute(t *testing.T) {
	cases := []struct {
		method string
		path   string
		object string
		action string
		ok     bool
	}{
		{http.MethodPost, "/payroll/api/settlements", authz.ObjectPayrollSettlements, authz.ActionGenerate, true},
		{http.MethodPost, "/payroll/api/settlements/preview", authz.ObjectPayrollSettlements, authz.ActionRead, true},
		{http.MethodGet, "/payroll/api/settlements/abc", authz.ObjectPayrollSettlements, authz.ActionRead, true},
		{http.MethodDelete, "/payroll/api/settlements/abc", authz.ObjectPayrollSettlements, authz.ActionDelete, true},
		{http.MethodGet, "/payroll/api/payrolls/p1/settlement", authz.ObjectPayrollSettlements, authz.ActionRead, true},
		{http.MethodGet, "/payroll/api/employees/e1/settlements", authz.ObjectPayrollSettlements, authz.ActionRead, true},
		{http.MethodGet, "/payroll/api/rate-config", authz.ObjectPayrollRateConfig, authz.ActionRead, true},
		{http.MethodDelete, "/payroll/api/rate-config/cache", authz.ObjectPayrollRateConfig, authz.ActionAdmin, true},
		{http.MethodPut, "/payroll/api/settlements/abc", "", "", false},
		{http.MethodGet, "/payroll/api/settlements/abc/extra", "", "", false},
		{http.MethodGet, "/payroll/api/payrolls//settlement", "", "", false},
	}
	for _, tc := range cases {
		object, action, ok := authzRequirementForRoute(tc.method, tc.path)
		if object != tc.object || action != tc.action || ok != tc.ok {
			t.Fatalf("%s %s: got (%q,%q,%v)", tc.method, tc.path, object, action, ok)
		}
	}
}

func TestWithAuthz_BypassesOpsAndUnguardedRoutes(t *testing.T) {
	a := &stubAuthorizer{allowed: false, enforced: true}
	for _, path := range []string{"/health", "/payroll/api/unknown"} {
		called := false
		rec := httptest.NewRecorder()
		withAuthz(a, nil, okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if !called || rec.Code != http.StatusOK {
			t.Fatalf("path=%s status=%d", path, rec.Code)
		}
	}
}

func TestWithAuthz_EnforcedDeny(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	a := &stubAuthorizer{allowed: false, enforced: true}
	called := false
	rec := httptest.NewRecorder()
	p := &Principal{ID: "u1", RoleSlug: "payroll-viewer"}
	withAuthz(a, zap.New(core), okHandler(&called)).ServeHTTP(rec, guardedRequest(http.MethodPost, "/payroll/api/settlements", p))

	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("called=%v status=%d", called, rec.Code)
	}
	if a.gotSubject != "role:payroll-viewer" || a.gotDomain != "t1" || a.gotObject != authz.ObjectPayrollSettlements || a.gotAction != authz.ActionGenerate {
		t.Fatalf("authorize args=%+v", a)
	}
	if logs.FilterMessage("authz denied").Len() != 1 {
		t.Fatalf("logs=%v", logs.All())
	}
}

func TestWithAuthz_ShadowDenyPasses(t *testing.T) {
	a := &stubAuthorizer{allowed: false, enforced: false}
	called := false
	rec := httptest.NewRecorder()
	withAuthz(a, nil, okHandler(&called)).ServeHTTP(rec, guardedRequest(http.MethodGet, "/payroll/api/rate-config", nil))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("called=%v status=%d", called, rec.Code)
	}
	if a.gotSubject != "role:anonymous" {
		t.Fatalf("subject=%q", a.gotSubject)
	}
}

func TestWithAuthz_ErrorAndMissingTenant(t *testing.T) {
	called := false
	rec := httptest.NewRecorder()
	withAuthz(&stubAuthorizer{err: errors.New("boom")}, nil, okHandler(&called)).ServeHTTP(rec, guardedRequest(http.MethodGet, "/payroll/api/rate-config", nil))
	if called || rec.Code != http.StatusInternalServerError {
		t.Fatalf("called=%v status=%d", called, rec.Code)
	}

	rec = httptest.NewRecorder()
	withAuthz(&stubAuthorizer{allowed: true, enforced: true}, nil, okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payroll/api/rate-config", nil))
	if called || rec.Code != http.StatusInternalServerError {
		t.Fatalf("called=%v status=%d", called, rec.Code)
	}
}
