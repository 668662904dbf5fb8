package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/ports"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/httperr"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/bpjs"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/money"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/pph21"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateConfigProvider supplies the typed rate table for a tenant.
type RateConfigProvider interface {
	Load(ctx context.Context, tenantID string) (types.RateConfig, error)
	Invalidate(ctx context.Context, tenantID string) error
}

type SettlementService struct {
	store  ports.SettlementStore
	rates  RateConfigProvider
	nowUTC func() time.Time
	newID  func() (string, error)
	logger *zap.Logger
}

func NewSettlementService(store ports.SettlementStore, rates RateConfigProvider, logger *zap.Logger) *SettlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		store:  store,
		rates:  rates,
		nowUTC: func() time.Time { return time.Now().UTC() },
		newID:  newUUIDv7,
		logger: logger,
	}
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// GenerateSettlement calculates and stores the settlement for one payroll
// record. The store's uniqueness guard is authoritative; the lookup before
// calculating only avoids wasted work.
func (s *SettlementService) GenerateSettlement(ctx context.Context, tenantID string, payrollID string, opts types.GenerateOptions, requestedBy string) (types.Settlement, error) {
	payrollID = strings.TrimSpace(payrollID)
	if payrollID == "" {
		return types.Settlement{}, httperr.NewBadRequest("payroll_id is required")
	}
	if err := validateOptions(opts); err != nil {
		return types.Settlement{}, err
	}

	record, ok, err := s.store.GetPayrollWithEmployee(ctx, tenantID, payrollID)
	if err != nil {
		return types.Settlement{}, err
	}
	if !ok {
		return types.Settlement{}, fmt.Errorf("%w: payroll %s", types.ErrPayrollNotFound, payrollID)
	}

	if _, exists, err := s.store.FindSettlementByPayrollID(ctx, tenantID, payrollID); err != nil {
		return types.Settlement{}, err
	} else if exists {
		s.logger.Warn("settlement already exists",
			zap.String("tenant_id", tenantID),
			zap.String("payroll_id", payrollID),
		)
		return types.Settlement{}, fmt.Errorf("%w: payroll %s", types.ErrSettlementConflict, payrollID)
	}

	settlement, err := s.calculate(ctx, tenantID, record, opts)
	if err != nil {
		return types.Settlement{}, err
	}

	id, err := s.newID()
	if err != nil {
		return types.Settlement{}, err
	}
	settlement.ID = id
	settlement.GeneratedBy = strings.TrimSpace(requestedBy)
	for i := range settlement.Deductions {
		lineID, err := s.newID()
		if err != nil {
			return types.Settlement{}, err
		}
		settlement.Deductions[i].ID = lineID
	}

	created, err := s.store.CreateSettlement(ctx, tenantID, settlement)
	if err != nil {
		if types.IsConflict(err) {
			s.logger.Warn("settlement insert lost uniqueness race",
				zap.String("tenant_id", tenantID),
				zap.String("payroll_id", payrollID),
			)
		}
		return types.Settlement{}, err
	}

	s.logger.Info("settlement generated",
		zap.String("tenant_id", tenantID),
		zap.String("payroll_id", payrollID),
		zap.String("settlement_id", created.ID),
		zap.String("generated_by", created.GeneratedBy),
		zap.Stringer("take_home_pay", created.TakeHomePay),
	)
	return created, nil
}

// PreviewSettlement runs the full calculation without storing anything.
func (s *SettlementService) PreviewSettlement(ctx context.Context, tenantID string, payrollID string, opts types.GenerateOptions) (types.Settlement, error) {
	payrollID = strings.TrimSpace(payrollID)
	if payrollID == "" {
		return types.Settlement{}, httperr.NewBadRequest("payroll_id is required")
	}
	if err := validateOptions(opts); err != nil {
		return types.Settlement{}, err
	}

	record, ok, err := s.store.GetPayrollWithEmployee(ctx, tenantID, payrollID)
	if err != nil {
		return types.Settlement{}, err
	}
	if !ok {
		return types.Settlement{}, fmt.Errorf("%w: payroll %s", types.ErrPayrollNotFound, payrollID)
	}
	return s.calculate(ctx, tenantID, record, opts)
}

func (s *SettlementService) GetSettlementByID(ctx context.Context, tenantID string, settlementID string) (types.Settlement, error) {
	out, ok, err := s.store.GetSettlement(ctx, tenantID, strings.TrimSpace(settlementID))
	if err != nil {
		return types.Settlement{}, err
	}
	if !ok {
		return types.Settlement{}, fmt.Errorf("%w: %s", types.ErrSettlementNotFound, settlementID)
	}
	return out, nil
}

func (s *SettlementService) GetSettlementByPayrollID(ctx context.Context, tenantID string, payrollID string) (types.Settlement, error) {
	out, ok, err := s.store.FindSettlementByPayrollID(ctx, tenantID, strings.TrimSpace(payrollID))
	if err != nil {
		return types.Settlement{}, err
	}
	if !ok {
		return types.Settlement{}, fmt.Errorf("%w: payroll %s", types.ErrSettlementNotFound, payrollID)
	}
	return out, nil
}

func (s *SettlementService) ListSettlementsForEmployee(ctx context.Context, tenantID string, employeeID string) ([]types.Settlement, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, httperr.NewBadRequest("employee_id is required")
	}
	return s.store.ListSettlementsForEmployee(ctx, tenantID, employeeID)
}

// DeleteSettlement removes a settlement and its deduction lines. Corrections
// are made by deleting and generating again.
func (s *SettlementService) DeleteSettlement(ctx context.Context, tenantID string, settlementID string) error {
	settlementID = strings.TrimSpace(settlementID)
	deleted, err := s.store.DeleteSettlement(ctx, tenantID, settlementID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", types.ErrSettlementNotFound, settlementID)
	}
	s.logger.Info("settlement deleted",
		zap.String("tenant_id", tenantID),
		zap.String("settlement_id", settlementID),
	)
	return nil
}

func (s *SettlementService) EffectiveRateConfig(ctx context.Context, tenantID string) (types.RateConfig, error) {
	return s.rates.Load(ctx, tenantID)
}

func (s *SettlementService) InvalidateRateConfig(ctx context.Context, tenantID string) error {
	if err := s.rates.Invalidate(ctx, tenantID); err != nil {
		return err
	}
	s.logger.Info("rate config invalidated", zap.String("tenant_id", tenantID))
	return nil
}

func validateOptions(opts types.GenerateOptions) error {
	if opts.AdditionalAllowances.IsNegative() {
		return httperr.NewBadRequest("additional_allowances must not be negative")
	}
	if opts.OtherDeductions.IsNegative() {
		return httperr.NewBadRequest("other_deductions must not be negative")
	}
	if !money.FitsCents(opts.AdditionalAllowances) {
		return httperr.NewBadRequest("additional_allowances must have at most 2 decimal places")
	}
	if !money.FitsCents(opts.OtherDeductions) {
		return httperr.NewBadRequest("other_deductions must have at most 2 decimal places")
	}
	return nil
}

func (s *SettlementService) calculate(ctx context.Context, tenantID string, record types.PayrollRecord, opts types.GenerateOptions) (types.Settlement, error) {
	cfg, err := s.rates.Load(ctx, tenantID)
	if err != nil {
		return types.Settlement{}, err
	}

	monthlyGross := money.SumOf(record.BaseSalary, record.OvertimePay, record.Bonuses, opts.AdditionalAllowances)

	tax, err := pph21.Calculate(cfg.Tax, monthlyGross, record.MaritalStatus, opts.DependentCount())
	if err != nil {
		return types.Settlement{}, fmt.Errorf("%w: %w", types.ErrConfigurationMissing, err)
	}

	// Overtime and bonuses are outside the insurance base.
	insurance, err := bpjs.Calculate(cfg.Insurance, record.BaseSalary, bpjs.NormalizeRiskCategory(opts.JKKRiskCategory))
	if err != nil {
		return types.Settlement{}, fmt.Errorf("%w: %w", types.ErrConfigurationMissing, err)
	}

	now := s.nowUTC()
	out := types.Settlement{
		TenantID:    tenantID,
		PayrollID:   record.ID,
		EmployeeID:  record.EmployeeID,
		PeriodStart: record.PeriodStart,
		PeriodEnd:   record.PeriodEnd,

		BaseSalary:           record.BaseSalary,
		OvertimePay:          record.OvertimePay,
		Bonuses:              record.Bonuses,
		AdditionalAllowances: opts.AdditionalAllowances,
		GrossIncome:          monthlyGross,

		TaxAmount:                   tax.MonthlyTax,
		BPJSKesehatanEmployee:       insurance.Kesehatan.Employee,
		BPJSKesehatanCompany:        insurance.Kesehatan.Company,
		BPJSKetenagakerjaanEmployee: insurance.KetenagakerjaanEmployee,
		BPJSKetenagakerjaanCompany:  insurance.KetenagakerjaanCompany,
		OtherDeductions:             opts.OtherDeductions,

		Calculation: types.CalculationSnapshot{
			Version:         types.SnapshotVersion,
			CalculatedAt:    now,
			MonthlyGross:    monthlyGross,
			InsuranceBase:   record.BaseSalary,
			MaritalStatus:   record.MaritalStatus,
			Options:         opts,
			Tax:             tax,
			Insurance:       insurance,
			TaxConfig:       cfg.Tax.Clone(),
			InsuranceConfig: cfg.Insurance.Clone(),
			ConfigSources:   slices.Clone(cfg.Sources),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	out.TotalDeductions = out.EmployeeDeductions()
	out.TakeHomePay = monthlyGross.Sub(out.TotalDeductions)
	out.Deductions = deductionLines(tax, insurance, opts.OtherDeductions)

	if err := out.Verify(); err != nil {
		return types.Settlement{}, err
	}
	return out, nil
}

func deductionLines(tax pph21.Result, insurance bpjs.Result, other decimal.Decimal) []types.DeductionLine {
	lines := []types.DeductionLine{
		{
			Type:        types.DeductionTax,
			Description: fmt.Sprintf("PPh 21 (%s)", tax.PTKPCategory),
			Amount:      tax.MonthlyTax,
		},
		{
			Type:        types.DeductionBPJSKesehatan,
			Description: fmt.Sprintf("BPJS Kesehatan (%s%%)", percent(insurance.Kesehatan.Employee, insurance.KesehatanBase)),
			Amount:      insurance.Kesehatan.Employee,
		},
		{
			Type:        types.DeductionBPJSTK,
			Description: "BPJS Ketenagakerjaan (JHT + JP)",
			Amount:      insurance.KetenagakerjaanEmployee,
		},
	}
	if other.IsPositive() {
		lines = append(lines, types.DeductionLine{
			Type:        types.DeductionOther,
			Description: "Other deductions",
			Amount:      other,
		})
	}
	return lines
}

func percent(part decimal.Decimal, base decimal.Decimal) string {
	if base.IsZero() {
		return "0"
	}
	return part.Div(base).Mul(decimal.NewFromInt(100)).Round(2).String()
}
