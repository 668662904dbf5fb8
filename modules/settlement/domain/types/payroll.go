package types

import "github.com/shopspring/decimal"

// PayrollRecord is owned by the payroll module; settlements only read it.
type PayrollRecord struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employee_id"`
	EmployeeName  string          `json:"employee_name"`
	PeriodStart   string          `json:"period_start"`
	PeriodEnd     string          `json:"period_end"`
	BaseSalary    decimal.Decimal `json:"base_salary"`
	OvertimePay   decimal.Decimal `json:"overtime_pay"`
	Bonuses       decimal.Decimal `json:"bonuses"`
	MaritalStatus string          `json:"marital_status"`
}

type RateSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
