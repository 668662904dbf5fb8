package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/internal/routing"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/httperr"
	"github.com/shopspring/decimal"
)

type fakeService struct {
	generateErr error
	getErr      error
	deleteErr   error
	listOut     []types.Settlement
	listErr     error
	rateErr     error

	gotTenant      string
	gotPayroll     string
	gotOpts        types.GenerateOptions
	gotRequestedBy string
	gotID          string
	invalidated    int
}

func (f *fakeService) GenerateSettlement(_ context.Context, tenantID string, payrollID string, opts types.GenerateOptions, requestedBy string) (types.Settlement, error) {
	f.gotTenant, f.gotPayroll, f.gotOpts, f.gotRequestedBy = tenantID, payrollID, opts, requestedBy
	if f.generateErr != nil {
		return types.Settlement{}, f.generateErr
	}
	return types.Settlement{ID: "s1", PayrollID: payrollID, TakeHomePay: decimal.RequireFromString("7505000")}, nil
}

func (f *fakeService) PreviewSettlement(_ context.Context, tenantID string, payrollID string, opts types.GenerateOptions) (types.Settlement, error) {
	f.gotTenant, f.gotPayroll, f.gotOpts = tenantID, payrollID, opts
	if f.generateErr != nil {
		return types.Settlement{}, f.generateErr
	}
	return types.Settlement{PayrollID: payrollID}, nil
}

func (f *fakeService) GetSettlementByID(_ context.Context, tenantID string, id string) (types.Settlement, error) {
	f.gotTenant, f.gotID = tenantID, id
	if f.getErr != nil {
		return types.Settlement{}, f.getErr
	}
	return types.Settlement{ID: id}, nil
}

func (f *fakeService) GetSettlementByPayrollID(_ context.Context, tenantID string, payrollID string) (types.Settlement, error) {
	f.gotTenant, f.gotPayroll = tenantID, payrollID
	if f.getErr != nil {
		return types.Settlement{}, f.getErr
	}
	return types.Settlement{ID: "s1", PayrollID: payrollID}, nil
}

func (f *fakeService) ListSettlementsForEmployee(_ context.Context, tenantID string, employeeID string) ([]types.Settlement, error) {
	f.gotTenant, f.gotID = tenantID, employeeID
	return f.listOut, f.listErr
}

func (f *fakeService) DeleteSettlement(_ context.Context, tenantID string, id string) error {
	f.gotTenant, f.gotID = tenantID, id
	return f.deleteErr
}

func (f *fakeService) EffectiveRateConfig(_ context.Context, tenantID string) (types.RateConfig, error) {
	f.gotTenant = tenantID
	if f.rateErr != nil {
		return types.RateConfig{}, f.rateErr
	}
	return types.RateConfig{TenantID: tenantID, Sources: []string{"PTKP_TK_0"}}, nil
}

func (f *fakeService) InvalidateRateConfig(_ context.Context, tenantID string) error {
	f.gotTenant = tenantID
	f.invalidated++
	return f.rateErr
}

func newController(svc *fakeService) SettlementsController {
	return SettlementsController{
		TenantID:    func(context.Context) (string, bool) { return "t1", true },
		PrincipalID: func(context.Context) (string, bool) { return "user-1", true },
		Service:     svc,
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) routing.ErrorEnvelope {
	t.Helper()
	var env routing.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, rec.Body.String())
	}
	return env
}

func TestHandleGenerate_Created(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)

	body := `{"payroll_id":" p1 ","jkk_risk_category":"HIGH","dependents":2,"additional_allowances":"500000","other_deductions":50000}`
	req := httptest.NewRequest(http.MethodPost, "/payroll/api/settlements", strings.NewReader(body))
	rec := httptest.NewRecorder()
	c.HandleGenerate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if svc.gotTenant != "t1" || svc.gotPayroll != "p1" || svc.gotRequestedBy != "user-1" {
		t.Fatalf("svc=%+v", svc)
	}
	if svc.gotOpts.JKKRiskCategory != "HIGH" || svc.gotOpts.DependentCount() != 2 {
		t.Fatalf("opts=%+v", svc.gotOpts)
	}
	if !svc.gotOpts.AdditionalAllowances.Equal(decimal.RequireFromString("500000")) || !svc.gotOpts.OtherDeductions.Equal(decimal.RequireFromString("50000")) {
		t.Fatalf("opts=%+v", svc.gotOpts)
	}
	if !strings.Contains(rec.Body.String(), `"take_home_pay":"7505000"`) {
		t.Fatalf("money must be a JSON string: %s", rec.Body.String())
	}
}

func TestHandleGenerate_NoPrincipal(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)
	c.PrincipalID = nil

	req := httptest.NewRequest(http.MethodPost, "/payroll/api/settlements", strings.NewReader(`{"payroll_id":"p1"}`))
	rec := httptest.NewRecorder()
	c.HandleGenerate(rec, req)
	if rec.Code != http.StatusCreated || svc.gotRequestedBy != "" {
		t.Fatalf("status=%d requestedBy=%q", rec.Code, svc.gotRequestedBy)
	}
}

func TestHandleGenerate_BadRequests(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		code    string
		message string
	}{
		{name: "bad json", body: `{`, code: "bad_json"},
		{name: "missing payroll", body: `{}`, code: "invalid_request", message: "payroll_id is required"},
		{name: "blank payroll", body: `{"payroll_id":"  "}`, code: "invalid_request", message: "payroll_id is required"},
		{name: "negative allowance", body: `{"payroll_id":"p1","additional_allowances":"-1"}`, code: "invalid_request", message: "additional_allowances must be a non-negative decimal"},
		{name: "negative other", body: `{"payroll_id":"p1","other_deductions":"-0.01"}`, code: "invalid_request", message: "other_deductions must be a non-negative decimal"},
		{name: "sub-cent allowance", body: `{"payroll_id":"p1","additional_allowances":"0.004"}`, code: "invalid_request", message: "additional_allowances must have at most 2 decimal places"},
		{name: "sub-cent other", body: `{"payroll_id":"p1","other_deductions":"1000.125"}`, code: "invalid_request", message: "other_deductions must have at most 2 decimal places"},
		{name: "bad decimal", body: `{"payroll_id":"p1","other_deductions":"abc"}`, code: "bad_json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{}
			c := newController(svc)
			req := httptest.NewRequest(http.MethodPost, "/payroll/api/settlements", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			c.HandleGenerate(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			env := decodeEnvelope(t, rec)
			if env.Code != tc.code {
				t.Fatalf("code=%q", env.Code)
			}
			if tc.message != "" && env.Message != tc.message {
				t.Fatalf("message=%q", env.Message)
			}
			if svc.gotPayroll != "" {
				t.Fatal("service must not be called")
			}
		})
	}
}

func TestHandleGenerate_ServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: fmt.Errorf("%w: payroll p1", types.ErrPayrollNotFound), status: http.StatusNotFound, code: "SETTLEMENT_PAYROLL_NOT_FOUND"},
		{err: types.ErrSettlementConflict, status: http.StatusConflict, code: "SETTLEMENT_ALREADY_EXISTS"},
		{err: fmt.Errorf("%w: %w", types.ErrConfigurationMissing, errors.New("no brackets")), status: http.StatusUnprocessableEntity, code: "SETTLEMENT_CONFIGURATION_MISSING"},
		{err: httperr.NewBadRequest("payroll_id is required"), status: http.StatusBadRequest, code: "invalid_request"},
		{err: errors.New("db down"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		svc := &fakeService{generateErr: tc.err}
		c := newController(svc)
		req := httptest.NewRequest(http.MethodPost, "/payroll/api/settlements", strings.NewReader(`{"payroll_id":"p1"}`))
		rec := httptest.NewRecorder()
		c.HandleGenerate(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("err=%v status=%d", tc.err, rec.Code)
		}
		env := decodeEnvelope(t, rec)
		if env.Code != tc.code {
			t.Fatalf("err=%v code=%q", tc.err, env.Code)
		}
		if tc.status == http.StatusInternalServerError && env.Message != "generate failed" {
			t.Fatalf("internal details leaked: %q", env.Message)
		}
	}
}

func TestHandlePreview(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)
	req := httptest.NewRequest(http.MethodPost, "/payroll/api/settlements/preview", strings.NewReader(`{"payroll_id":"p9"}`))
	rec := httptest.NewRecorder()
	c.HandlePreview(rec, req)
	if rec.Code != http.StatusOK || svc.gotPayroll != "p9" {
		t.Fatalf("status=%d payroll=%q", rec.Code, svc.gotPayroll)
	}
}

func TestHandleGet_AndGetByPayroll(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/payroll/api/settlements/s7", nil), map[string]string{"id": "s7"})
	rec := httptest.NewRecorder()
	c.HandleGet(rec, req)
	if rec.Code != http.StatusOK || svc.gotID != "s7" {
		t.Fatalf("status=%d id=%q", rec.Code, svc.gotID)
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/payroll/api/payrolls/p3/settlement", nil), map[string]string{"payroll_id": "p3"})
	rec = httptest.NewRecorder()
	c.HandleGetByPayroll(rec, req)
	if rec.Code != http.StatusOK || svc.gotPayroll != "p3" {
		t.Fatalf("status=%d payroll=%q", rec.Code, svc.gotPayroll)
	}

	svc.getErr = fmt.Errorf("%w: s7", types.ErrSettlementNotFound)
	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/payroll/api/settlements/s7", nil), map[string]string{"id": "s7"})
	rec = httptest.NewRecorder()
	c.HandleGet(rec, req)
	if rec.Code != http.StatusNotFound || decodeEnvelope(t, rec).Code != "SETTLEMENT_NOT_FOUND" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleDelete(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/payroll/api/settlements/s1", nil), map[string]string{"id": "s1"})
	rec := httptest.NewRecorder()
	c.HandleDelete(rec, req)
	if rec.Code != http.StatusNoContent || svc.gotID != "s1" {
		t.Fatalf("status=%d id=%q", rec.Code, svc.gotID)
	}

	svc.deleteErr = types.ErrSettlementNotFound
	rec = httptest.NewRecorder()
	c.HandleDelete(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestHandleListForEmployee(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/payroll/api/employees/e1/settlements", nil), map[string]string{"employee_id": "e1"})
	rec := httptest.NewRecorder()
	c.HandleListForEmployee(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"settlements":[]`) || !strings.Contains(rec.Body.String(), `"employee_id":"e1"`) {
		t.Fatalf("body=%s", rec.Body.String())
	}

	svc.listErr = errors.New("boom")
	rec = httptest.NewRecorder()
	c.HandleListForEmployee(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestHandleRateConfig_AndInvalidate(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)

	rec := httptest.NewRecorder()
	c.HandleRateConfig(rec, httptest.NewRequest(http.MethodGet, "/payroll/api/rate-config", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"PTKP_TK_0"`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c.HandleInvalidateRateConfig(rec, httptest.NewRequest(http.MethodDelete, "/payroll/api/rate-config/cache", nil))
	if rec.Code != http.StatusNoContent || svc.invalidated != 1 {
		t.Fatalf("status=%d invalidated=%d", rec.Code, svc.invalidated)
	}

	svc.rateErr = fmt.Errorf("%w: PTKP_TK_0", types.ErrConfigurationMissing)
	rec = httptest.NewRecorder()
	c.HandleRateConfig(rec, httptest.NewRequest(http.MethodGet, "/payroll/api/rate-config", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestTenantMissing(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)
	c.TenantID = func(context.Context) (string, bool) { return "", false }

	rec := httptest.NewRecorder()
	c.HandleRateConfig(rec, httptest.NewRequest(http.MethodGet, "/payroll/api/rate-config", nil))
	if rec.Code != http.StatusInternalServerError || decodeEnvelope(t, rec).Code != "tenant_missing" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	c.TenantID = nil
	rec = httptest.NewRecorder()
	c.HandleRateConfig(rec, httptest.NewRequest(http.MethodGet, "/payroll/api/rate-config", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: types.ErrPayrollNotFound, want: http.StatusNotFound},
		{err: types.ErrSettlementNotFound, want: http.StatusNotFound},
		{err: types.ErrSettlementConflict, want: http.StatusConflict},
		{err: types.ErrConfigurationMissing, want: http.StatusUnprocessableEntity},
		{err: httperr.NewBadRequest("x"), want: http.StatusBadRequest},
		{err: httperr.NewUnauthorized("x"), want: http.StatusUnauthorized},
		{err: httperr.NewForbidden("x"), want: http.StatusForbidden},
		{err: errors.New("x"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v)=%d want %d", tc.err, got, tc.want)
		}
	}
}
