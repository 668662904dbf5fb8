package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/internal/routing"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/presentation/controllers"
	"go.uber.org/zap"
)

// Pinger reports storage health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerOptions struct {
	TenancyResolver TenancyResolver
	Verifier        PrincipalVerifier
	Authorizer      RequestAuthorizer
	Service         controllers.SettlementService
	Health          Pinger
	Logger          *zap.Logger
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	switch {
	case opts.TenancyResolver == nil:
		return nil, errors.New("server: tenancy resolver is required")
	case opts.Verifier == nil:
		return nil, errors.New("server: token verifier is required")
	case opts.Authorizer == nil:
		return nil, errors.New("server: authorizer is required")
	case opts.Service == nil:
		return nil, errors.New("server: settlement service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	settlements := controllers.SettlementsController{
		TenantID:    currentTenantID,
		PrincipalID: currentPrincipalID,
		Service:     opts.Service,
		Logger:      logger,
	}

	api := routing.RouteClassInternalAPI
	router := routing.NewRouter(logger)
	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", healthHandler(opts.Health))
	router.Handle(api, http.MethodPost, "/payroll/api/settlements", http.HandlerFunc(settlements.HandleGenerate))
	router.Handle(api, http.MethodPost, "/payroll/api/settlements/preview", http.HandlerFunc(settlements.HandlePreview))
	router.Handle(api, http.MethodGet, "/payroll/api/settlements/{id}", http.HandlerFunc(settlements.HandleGet))
	router.Handle(api, http.MethodDelete, "/payroll/api/settlements/{id}", http.HandlerFunc(settlements.HandleDelete))
	router.Handle(api, http.MethodGet, "/payroll/api/payrolls/{payroll_id}/settlement", http.HandlerFunc(settlements.HandleGetByPayroll))
	router.Handle(api, http.MethodGet, "/payroll/api/employees/{employee_id}/settlements", http.HandlerFunc(settlements.HandleListForEmployee))
	router.Handle(api, http.MethodGet, "/payroll/api/rate-config", http.HandlerFunc(settlements.HandleRateConfig))
	router.Handle(api, http.MethodDelete, "/payroll/api/rate-config/cache", http.HandlerFunc(settlements.HandleInvalidateRateConfig))

	return withTenantAndPrincipal(opts.TenancyResolver, opts.Verifier, withAuthz(opts.Authorizer, logger, router)), nil
}

func healthHandler(p Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				routing.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		routing.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
