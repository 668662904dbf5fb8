package server

import (
	"net/http"
	"strings"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/internal/routing"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/authz"
	"go.uber.org/zap"
)

type RequestAuthorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

type routeRequirement struct {
	method   string
	template string
	object   string
	action   string
}

// routeRequirements lists every guarded API route. Templates use the same
// {var} segments as the router.
var routeRequirements = []routeRequirement{
	{http.MethodPost, "/payroll/api/settlements/preview", authz.ObjectPayrollSettlements, authz.ActionRead},
	{http.MethodPost, "/payroll/api/settlements", authz.ObjectPayrollSettlements, authz.ActionGenerate},
	{http.MethodGet, "/payroll/api/settlements/{id}", authz.ObjectPayrollSettlements, authz.ActionRead},
	{http.MethodDelete, "/payroll/api/settlements/{id}", authz.ObjectPayrollSettlements, authz.ActionDelete},
	{http.MethodGet, "/payroll/api/payrolls/{payroll_id}/settlement", authz.ObjectPayrollSettlements, authz.ActionRead},
	{http.MethodGet, "/payroll/api/employees/{employee_id}/settlements", authz.ObjectPayrollSettlements, authz.ActionRead},
	{http.MethodGet, "/payroll/api/rate-config", authz.ObjectPayrollRateConfig, authz.ActionRead},
	{http.MethodDelete, "/payroll/api/rate-config/cache", authz.ObjectPayrollRateConfig, authz.ActionAdmin},
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	for _, req := range routeRequirements {
		if req.method == method && pathMatchRouteTemplate(path, req.template) {
			return req.object, req.action, true
		}
	}
	return "", "", false
}

func pathMatchRouteTemplate(path string, template string) bool {
	ps := strings.Split(strings.Trim(path, "/"), "/")
	ts := strings.Split(strings.Trim(template, "/"), "/")
	if len(ps) != len(ts) {
		return false
	}
	for i := range ts {
		if strings.HasPrefix(ts[i], "{") && strings.HasSuffix(ts[i], "}") {
			if ps[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != ts[i] {
			return false
		}
	}
	return true
}

func withAuthz(a RequestAuthorizer, logger *zap.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.Classify(path)
		if rc == routing.RouteClassOps {
			next.ServeHTTP(w, r)
			return
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		tenant, ok := currentTenant(r.Context())
		if !ok {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_missing", "tenant missing")
			return
		}

		roleSlug := authz.RoleAnonymous
		principalID := ""
		if p, ok := currentPrincipal(r.Context()); ok {
			roleSlug = p.RoleSlug
			principalID = p.ID
		}

		subject := authz.SubjectFromRoleSlug(roleSlug)
		domain := authz.DomainFromTenantID(tenant.ID)

		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			logger.Error("authz error", zap.String("subject", subject), zap.String("object", object), zap.Error(err))
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if !allowed {
			logger.Warn("authz denied",
				zap.Bool("enforced", enforced),
				zap.String("tenant_id", tenant.ID),
				zap.String("principal_id", principalID),
				zap.String("subject", subject),
				zap.String("object", object),
				zap.String("action", action),
			)
			if enforced {
				routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
