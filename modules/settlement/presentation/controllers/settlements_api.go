package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/internal/routing"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/httperr"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TenantIDGetter func(ctx context.Context) (tenantID string, ok bool)

type PrincipalIDGetter func(ctx context.Context) (principalID string, ok bool)

// SettlementService is the part of the settlement service the HTTP API
// drives.
type SettlementService interface {
	GenerateSettlement(ctx context.Context, tenantID string, payrollID string, opts types.GenerateOptions, requestedBy string) (types.Settlement, error)
	PreviewSettlement(ctx context.Context, tenantID string, payrollID string, opts types.GenerateOptions) (types.Settlement, error)
	GetSettlementByID(ctx context.Context, tenantID string, settlementID string) (types.Settlement, error)
	GetSettlementByPayrollID(ctx context.Context, tenantID string, payrollID string) (types.Settlement, error)
	ListSettlementsForEmployee(ctx context.Context, tenantID string, employeeID string) ([]types.Settlement, error)
	DeleteSettlement(ctx context.Context, tenantID string, settlementID string) error
	EffectiveRateConfig(ctx context.Context, tenantID string) (types.RateConfig, error)
	InvalidateRateConfig(ctx context.Context, tenantID string) error
}

type SettlementsController struct {
	TenantID    TenantIDGetter
	PrincipalID PrincipalIDGetter
	Service     SettlementService
	Logger      *zap.Logger
}

type settlementRequest struct {
	PayrollID            string          `json:"payroll_id" validate:"required,max=64"`
	JKKRiskCategory      string          `json:"jkk_risk_category" validate:"omitempty,max=32"`
	Dependents           *int            `json:"dependents"`
	AdditionalAllowances decimal.Decimal `json:"additional_allowances" validate:"nonneg_decimal,cents"`
	OtherDeductions      decimal.Decimal `json:"other_deductions" validate:"nonneg_decimal,cents"`
}

func (req settlementRequest) options() types.GenerateOptions {
	return types.GenerateOptions{
		JKKRiskCategory:      strings.TrimSpace(req.JKKRiskCategory),
		Dependents:           req.Dependents,
		AdditionalAllowances: req.AdditionalAllowances,
		OtherDeductions:      req.OtherDeductions,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("nonneg_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	_ = v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && money.FitsCents(d)
	})
	return v
}

func (c SettlementsController) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c SettlementsController) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.tenant(w, r)
	if !ok {
		return
	}
	req, ok := decodeSettlementRequest(w, r)
	if !ok {
		return
	}

	requestedBy := ""
	if c.PrincipalID != nil {
		requestedBy, _ = c.PrincipalID(r.Context())
	}

	s, err := c.Service.GenerateSettlement(r.Context(), tenantID, req.PayrollID, req.options(), requestedBy)
	if err != nil {
		c.writeServiceError(w, r, err, "generate failed")
		return
	}
	routing.WriteJSON(w, http.StatusCreated, s)
}

func (c SettlementsController) HandlePreview(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.tenant(w, r)
	if !ok {
		return
	}
	req, ok := decodeSettlementRequest(w, r)
	if !ok {
		return
	}

	s, err := c.Service.PreviewSettlement(r.Context(), tenantID, req.PayrollID, req.options())
	if err != nil {
		c.writeServiceError(w, r, err, "preview failed")
		return
	}
	routing.WriteJSON(w, http.StatusOK, s)
}

func (c SettlementsController) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.tenant(w, r)
	if !ok {
		return
	}
	s, err := c.Service.GetSettlementByID(r.Context(), tenantID, mux.Vars(r)["id"])
	if err != nil {
		c.writeServiceError(w, r, err, "get failed")
		return
	}
	routing.WriteJSON(w, http.StatusOK, s)
}

func (c SettlementsController) HandleDelete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.tenant(w, r)
	if !ok {
		return
	}
	if err := c.Service.DeleteSettlement(r.Context(), tenantID, mux.Vars(r)["id"]); err != nil {
		c.writeServiceError(w, r, err, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c SettlementsController) HandleGetByPayroll(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.tenant(w, r)
	if !ok {
		return
	}
	s, err := c.Service.GetSettlementByPayrollID(r.Context(), tenantID, mux.Vars(r)["payroll_id"])
	if err != nil {
		c.writeServiceError(w, r, err, "get failed")
		return
	}
	routing.WriteJSON(w, http.StatusOK, s)
}

func (c SettlementsController) HandleListForEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.tenant(w, r)
	if !ok {
		return
	}
	employeeID := strings.TrimSpace(mux.Vars(r)["employee_id"])
	out, err := c.Service.ListSettlementsForEmployee(r.Context(), tenantID, employeeID)
	if err != nil {
		c.writeServiceError(w, r, err, "list failed")
		return
	}
	if out == nil {
		out = make([]types.Settlement, 0)
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{
		"employee_id": employeeID,
		"settlements": out,
	})
}

func (c SettlementsController) HandleRateConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.tenant(w, r)
	if !ok {
		return
	}
	cfg, err := c.Service.EffectiveRateConfig(r.Context(), tenantID)
	if err != nil {
		c.writeServiceError(w, r, err, "rate config failed")
		return
	}
	routing.WriteJSON(w, http.StatusOK, cfg)
}

func (c SettlementsController) HandleInvalidateRateConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.tenant(w, r)
	if !ok {
		return
	}
	if err := c.Service.InvalidateRateConfig(r.Context(), tenantID); err != nil {
		c.writeServiceError(w, r, err, "invalidate failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c SettlementsController) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	if c.TenantID == nil {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return "", false
	}
	tenantID, ok := c.TenantID(r.Context())
	if !ok || strings.TrimSpace(tenantID) == "" {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return "", false
	}
	return tenantID, true
}

func decodeSettlementRequest(w http.ResponseWriter, r *http.Request) (settlementRequest, bool) {
	var req settlementRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return req, false
	}
	req.PayrollID = strings.TrimSpace(req.PayrollID)
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return req, false
	}
	return req, true
}

func validationMessage(err error) string {
	verrs, ok := errors.AsType[validator.ValidationErrors](err)
	if !ok || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "nonneg_decimal":
		return fe.Field() + " must be a non-negative decimal"
	case "cents":
		return fe.Field() + " must have at most 2 decimal places"
	default:
		return fe.Field() + " is invalid"
	}
}

// statusFor maps the settlement error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case types.IsNotFound(err):
		return http.StatusNotFound
	case types.IsConflict(err):
		return http.StatusConflict
	case types.IsConfigurationMissing(err):
		return http.StatusUnprocessableEntity
	}
	if status := httperr.StatusOf(err); status != 0 {
		return status
	}
	return http.StatusInternalServerError
}

func (c SettlementsController) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	code := types.Code(err)
	message := err.Error()
	switch {
	case code != "":
	case status == http.StatusBadRequest:
		code = "invalid_request"
	default:
		code = "internal_error"
		message = fallback
		c.logger().Error(fallback,
			zap.String("path", r.URL.Path),
			zap.String("trace_id", routing.TraceID(r)),
			zap.Error(err),
		)
	}
	writeError(w, r, status, code, message)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, message)
}
