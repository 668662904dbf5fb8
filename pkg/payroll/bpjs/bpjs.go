// Package bpjs computes the mandatory BPJS Kesehatan and BPJS
// Ketenagakerjaan (JHT, JP, JKK, JKM) contributions for one month.
package bpjs

import (
	"errors"
	"maps"
	"strings"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/money"
	"github.com/shopspring/decimal"
)

type RiskCategory string

const (
	RiskVeryLow  RiskCategory = "VERY_LOW"
	RiskLow      RiskCategory = "LOW"
	RiskMedium   RiskCategory = "MEDIUM"
	RiskHigh     RiskCategory = "HIGH"
	RiskVeryHigh RiskCategory = "VERY_HIGH"
)

var RiskCategories = []RiskCategory{RiskVeryLow, RiskLow, RiskMedium, RiskHigh, RiskVeryHigh}

var ErrJKKRateMissing = errors.New("bpjs: no JKK rate for requested or LOW risk category")

func NormalizeRiskCategory(raw string) RiskCategory {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return RiskLow
	}
	return RiskCategory(s)
}

type Config struct {
	KesehatanEmployeeRate decimal.Decimal `json:"kesehatan_employee_rate"`
	KesehatanCompanyRate  decimal.Decimal `json:"kesehatan_company_rate"`
	// KesehatanSalaryCap <= 0 disables the cap.
	KesehatanSalaryCap decimal.Decimal `json:"kesehatan_salary_cap"`

	JHTEmployeeRate decimal.Decimal `json:"jht_employee_rate"`
	JHTCompanyRate  decimal.Decimal `json:"jht_company_rate"`

	JPEmployeeRate decimal.Decimal `json:"jp_employee_rate"`
	JPCompanyRate  decimal.Decimal `json:"jp_company_rate"`
	JPSalaryCap    decimal.Decimal `json:"jp_salary_cap"`

	JKKRates       map[RiskCategory]decimal.Decimal `json:"jkk_rates"`
	JKMCompanyRate decimal.Decimal                  `json:"jkm_company_rate"`
}

// Clone returns a copy whose JKK rate table is not shared with c.
func (c Config) Clone() Config {
	out := c
	out.JKKRates = maps.Clone(c.JKKRates)
	return out
}

type Contribution struct {
	Employee decimal.Decimal `json:"employee"`
	Company  decimal.Decimal `json:"company"`
}

func (c Contribution) Total() decimal.Decimal {
	return c.Employee.Add(c.Company)
}

type Result struct {
	Gross decimal.Decimal `json:"gross"`

	KesehatanBase decimal.Decimal `json:"kesehatan_base"`
	KesehatanCap  decimal.Decimal `json:"kesehatan_cap"`
	Kesehatan     Contribution    `json:"kesehatan"`

	JHT Contribution `json:"jht"`

	JPBase decimal.Decimal `json:"jp_base"`
	JPCap  decimal.Decimal `json:"jp_cap"`
	JP     Contribution    `json:"jp"`

	RequestedRiskCategory RiskCategory    `json:"requested_risk_category"`
	RiskCategory          RiskCategory    `json:"risk_category"`
	JKKRate               decimal.Decimal `json:"jkk_rate"`
	JKK                   decimal.Decimal `json:"jkk"`

	JKMRate decimal.Decimal `json:"jkm_rate"`
	JKM     decimal.Decimal `json:"jkm"`

	KetenagakerjaanEmployee decimal.Decimal `json:"ketenagakerjaan_employee"`
	KetenagakerjaanCompany  decimal.Decimal `json:"ketenagakerjaan_company"`
	TotalEmployee           decimal.Decimal `json:"total_employee"`
	TotalCompany            decimal.Decimal `json:"total_company"`
}

func (c Config) jkkRate(requested RiskCategory) (RiskCategory, decimal.Decimal, error) {
	if rate, ok := c.JKKRates[requested]; ok {
		return requested, rate, nil
	}
	if rate, ok := c.JKKRates[RiskLow]; ok {
		return RiskLow, rate, nil
	}
	return "", money.Zero, ErrJKKRateMissing
}

// Calculate returns the monthly contributions for a gross insurance base.
// Each component is rounded on its own before it is summed.
func Calculate(cfg Config, gross decimal.Decimal, category RiskCategory) (Result, error) {
	requested := NormalizeRiskCategory(string(category))
	applied, jkkRate, err := cfg.jkkRate(requested)
	if err != nil {
		return Result{}, err
	}

	gross = money.Max0(gross)
	kesBase := money.CapAt(gross, cfg.KesehatanSalaryCap)
	jpBase := money.CapAt(gross, cfg.JPSalaryCap)

	out := Result{
		Gross:         gross,
		KesehatanBase: kesBase,
		KesehatanCap:  cfg.KesehatanSalaryCap,
		Kesehatan: Contribution{
			Employee: money.MulRoundHalfUp(kesBase, cfg.KesehatanEmployeeRate),
			Company:  money.MulRoundHalfUp(kesBase, cfg.KesehatanCompanyRate),
		},
		JHT: Contribution{
			Employee: money.MulRoundHalfUp(gross, cfg.JHTEmployeeRate),
			Company:  money.MulRoundHalfUp(gross, cfg.JHTCompanyRate),
		},
		JPBase: jpBase,
		JPCap:  cfg.JPSalaryCap,
		JP: Contribution{
			Employee: money.MulRoundHalfUp(jpBase, cfg.JPEmployeeRate),
			Company:  money.MulRoundHalfUp(jpBase, cfg.JPCompanyRate),
		},
		RequestedRiskCategory: requested,
		RiskCategory:          applied,
		JKKRate:               jkkRate,
		JKK:                   money.MulRoundHalfUp(gross, jkkRate),
		JKMRate:               cfg.JKMCompanyRate,
		JKM:                   money.MulRoundHalfUp(gross, cfg.JKMCompanyRate),
	}

	out.KetenagakerjaanEmployee = money.SumOf(out.JHT.Employee, out.JP.Employee)
	out.KetenagakerjaanCompany = money.SumOf(out.JHT.Company, out.JP.Company, out.JKK, out.JKM)
	out.TotalEmployee = money.SumOf(out.Kesehatan.Employee, out.KetenagakerjaanEmployee)
	out.TotalCompany = money.SumOf(out.Kesehatan.Company, out.KetenagakerjaanCompany)
	return out, nil
}
