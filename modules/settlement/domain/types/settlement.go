package types

import (
	"fmt"
	"time"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/bpjs"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/pph21"
	"github.com/shopspring/decimal"
)

type DeductionType string

const (
	DeductionTax           DeductionType = "TAX"
	DeductionBPJSKesehatan DeductionType = "BPJS_KESEHATAN"
	DeductionBPJSTK        DeductionType = "BPJS_TK"
	DeductionOther         DeductionType = "OTHER"
)

const SnapshotVersion = 1

type DeductionLine struct {
	ID          string          `json:"id"`
	Type        DeductionType   `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// GenerateOptions are the caller-supplied inputs of one settlement run.
type GenerateOptions struct {
	JKKRiskCategory      string          `json:"jkk_risk_category"`
	Dependents           *int            `json:"dependents"`
	AdditionalAllowances decimal.Decimal `json:"additional_allowances"`
	OtherDeductions      decimal.Decimal `json:"other_deductions"`
}

func (o GenerateOptions) DependentCount() int {
	if o.Dependents == nil {
		return 0
	}
	return *o.Dependents
}

// CalculationSnapshot freezes every input and rate that produced a
// settlement. It is written once and never re-derived.
type CalculationSnapshot struct {
	Version       int             `json:"version"`
	CalculatedAt  time.Time       `json:"calculated_at"`
	MonthlyGross  decimal.Decimal `json:"monthly_gross"`
	InsuranceBase decimal.Decimal `json:"insurance_base"`
	MaritalStatus string          `json:"marital_status"`
	Options       GenerateOptions `json:"options"`

	Tax       pph21.Result `json:"tax"`
	Insurance bpjs.Result  `json:"insurance"`

	TaxConfig       pph21.Config `json:"tax_config"`
	InsuranceConfig bpjs.Config  `json:"insurance_config"`
	ConfigSources   []string     `json:"config_sources"`
}

type Settlement struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	PayrollID   string `json:"payroll_id"`
	EmployeeID  string `json:"employee_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`

	BaseSalary           decimal.Decimal `json:"base_salary"`
	OvertimePay          decimal.Decimal `json:"overtime_pay"`
	Bonuses              decimal.Decimal `json:"bonuses"`
	AdditionalAllowances decimal.Decimal `json:"additional_allowances"`
	GrossIncome          decimal.Decimal `json:"gross_income"`

	TaxAmount                   decimal.Decimal `json:"tax_amount"`
	BPJSKesehatanEmployee       decimal.Decimal `json:"bpjs_kesehatan_employee"`
	BPJSKesehatanCompany        decimal.Decimal `json:"bpjs_kesehatan_company"`
	BPJSKetenagakerjaanEmployee decimal.Decimal `json:"bpjs_ketenagakerjaan_employee"`
	BPJSKetenagakerjaanCompany  decimal.Decimal `json:"bpjs_ketenagakerjaan_company"`
	OtherDeductions             decimal.Decimal `json:"other_deductions"`
	TotalDeductions             decimal.Decimal `json:"total_deductions"`
	TakeHomePay                 decimal.Decimal `json:"take_home_pay"`

	Calculation CalculationSnapshot `json:"calculation"`
	GeneratedBy string              `json:"generated_by"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	Deductions []DeductionLine `json:"deductions"`
}

// EmployeeDeductions is the sum of every employee-side deduction stored on
// the settlement.
func (s Settlement) EmployeeDeductions() decimal.Decimal {
	return s.TaxAmount.
		Add(s.BPJSKesehatanEmployee).
		Add(s.BPJSKetenagakerjaanEmployee).
		Add(s.OtherDeductions)
}

// Verify recomputes the stored totals from the stored components.
func (s Settlement) Verify() error {
	gross := s.BaseSalary.Add(s.OvertimePay).Add(s.Bonuses).Add(s.AdditionalAllowances)
	if !gross.Equal(s.GrossIncome) {
		return fmt.Errorf("settlement %s: gross_income %s != components %s", s.PayrollID, s.GrossIncome, gross)
	}
	deductions := s.EmployeeDeductions()
	if !deductions.Equal(s.TotalDeductions) {
		return fmt.Errorf("settlement %s: total_deductions %s != components %s", s.PayrollID, s.TotalDeductions, deductions)
	}
	if want := s.GrossIncome.Sub(deductions); !want.Equal(s.TakeHomePay) {
		return fmt.Errorf("settlement %s: take_home_pay %s != %s", s.PayrollID, s.TakeHomePay, want)
	}

	lines := decimal.Zero
	for _, l := range s.Deductions {
		lines = lines.Add(l.Amount)
	}
	if len(s.Deductions) > 0 && !lines.Equal(s.TotalDeductions) {
		return fmt.Errorf("settlement %s: deduction lines %s != total_deductions %s", s.PayrollID, lines, s.TotalDeductions)
	}
	return nil
}
