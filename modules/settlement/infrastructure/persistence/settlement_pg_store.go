package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/ports"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/money"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type SettlementPGStore struct {
	pool pgBeginner
}

func NewSettlementPGStore(pool pgBeginner) ports.SettlementStore {
	return &SettlementPGStore{pool: pool}
}

func beginTenantTx(ctx context.Context, pool pgBeginner, tenantID string) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, err
	}
	return tx, nil
}

// validUUID keeps malformed ids out of uuid casts, so they read as absent
// instead of failing with 22P02.
func validUUID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

func parseMoney(field string, raw string) (decimal.Decimal, error) {
	v, err := money.Parse(raw)
	if err != nil {
		return money.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func (s *SettlementPGStore) GetPayrollWithEmployee(ctx context.Context, tenantID string, payrollID string) (types.PayrollRecord, bool, error) {
	payrollID = strings.TrimSpace(payrollID)
	if !validUUID(payrollID) {
		return types.PayrollRecord{}, false, nil
	}

	tx, err := beginTenantTx(ctx, s.pool, tenantID)
	if err != nil {
		return types.PayrollRecord{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var out types.PayrollRecord
	var base, overtime, bonuses string
	if err := tx.QueryRow(ctx, `
	SELECT
	  p.id::text,
	  p.employee_id::text,
	  e.full_name,
	  p.period_start::text,
	  p.period_end::text,
	  p.base_salary::text,
	  p.overtime_pay::text,
	  p.bonuses::text,
	  e.marital_status
	FROM payroll.payroll_records p
	JOIN hr.employees e ON e.tenant_id = p.tenant_id AND e.id = p.employee_id
	WHERE p.tenant_id = $1::uuid AND p.id = $2::uuid
	`, tenantID, payrollID).Scan(&out.ID, &out.EmployeeID, &out.EmployeeName, &out.PeriodStart, &out.PeriodEnd, &base, &overtime, &bonuses, &out.MaritalStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.PayrollRecord{}, false, nil
		}
		return types.PayrollRecord{}, false, err
	}

	if out.BaseSalary, err = parseMoney("base_salary", base); err != nil {
		return types.PayrollRecord{}, false, err
	}
	if out.OvertimePay, err = parseMoney("overtime_pay", overtime); err != nil {
		return types.PayrollRecord{}, false, err
	}
	if out.Bonuses, err = parseMoney("bonuses", bonuses); err != nil {
		return types.PayrollRecord{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.PayrollRecord{}, false, err
	}
	return out, true, nil
}

const settlementColumns = `
	  id::text,
	  tenant_id::text,
	  payroll_id::text,
	  employee_id::text,
	  period_start::text,
	  period_end::text,
	  base_salary::text,
	  overtime_pay::text,
	  bonuses::text,
	  additional_allowances::text,
	  gross_income::text,
	  tax_amount::text,
	  bpjs_kesehatan_employee::text,
	  bpjs_kesehatan_company::text,
	  bpjs_ketenagakerjaan_employee::text,
	  bpjs_ketenagakerjaan_company::text,
	  other_deductions::text,
	  total_deductions::text,
	  take_home_pay::text,
	  calculation::text,
	  generated_by,
	  created_at,
	  updated_at`

func scanSettlement(row rowScanner) (types.Settlement, error) {
	var out types.Settlement
	var amounts [13]string
	var calculation string
	if err := row.Scan(
		&out.ID, &out.TenantID, &out.PayrollID, &out.EmployeeID, &out.PeriodStart, &out.PeriodEnd,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5], &amounts[6],
		&amounts[7], &amounts[8], &amounts[9], &amounts[10], &amounts[11], &amounts[12],
		&calculation, &out.GeneratedBy, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		return types.Settlement{}, err
	}

	fields := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"base_salary", &out.BaseSalary},
		{"overtime_pay", &out.OvertimePay},
		{"bonuses", &out.Bonuses},
		{"additional_allowances", &out.AdditionalAllowances},
		{"gross_income", &out.GrossIncome},
		{"tax_amount", &out.TaxAmount},
		{"bpjs_kesehatan_employee", &out.BPJSKesehatanEmployee},
		{"bpjs_kesehatan_company", &out.BPJSKesehatanCompany},
		{"bpjs_ketenagakerjaan_employee", &out.BPJSKetenagakerjaanEmployee},
		{"bpjs_ketenagakerjaan_company", &out.BPJSKetenagakerjaanCompany},
		{"other_deductions", &out.OtherDeductions},
		{"total_deductions", &out.TotalDeductions},
		{"take_home_pay", &out.TakeHomePay},
	}
	for i, f := range fields {
		v, err := parseMoney(f.name, amounts[i])
		if err != nil {
			return types.Settlement{}, err
		}
		*f.dst = v
	}

	if strings.TrimSpace(calculation) != "" {
		if err := json.Unmarshal([]byte(calculation), &out.Calculation); err != nil {
			return types.Settlement{}, fmt.Errorf("calculation: %w", err)
		}
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

func loadDeductions(ctx context.Context, tx pgx.Tx, tenantID string, settlementID string) ([]types.DeductionLine, error) {
	rows, err := tx.Query(ctx, `
	SELECT
	  id::text,
	  deduction_type,
	  description,
	  amount::text
	FROM payroll.settlement_deductions
	WHERE tenant_id = $1::uuid AND settlement_id = $2::uuid
	ORDER BY seq ASC
	`, tenantID, settlementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.DeductionLine
	for rows.Next() {
		var line types.DeductionLine
		var kind, amount string
		if err := rows.Scan(&line.ID, &kind, &line.Description, &amount); err != nil {
			return nil, err
		}
		line.Type = types.DeductionType(kind)
		if line.Amount, err = parseMoney("amount", amount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SettlementPGStore) findOne(ctx context.Context, tenantID string, where string, arg string) (types.Settlement, bool, error) {
	tx, err := beginTenantTx(ctx, s.pool, tenantID)
	if err != nil {
		return types.Settlement{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := scanSettlement(tx.QueryRow(ctx, `
	SELECT`+settlementColumns+`
	FROM payroll.settlements
	WHERE tenant_id = $1::uuid AND `+where+` = $2::uuid
	`, tenantID, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Settlement{}, false, nil
		}
		return types.Settlement{}, false, err
	}

	if out.Deductions, err = loadDeductions(ctx, tx, tenantID, out.ID); err != nil {
		return types.Settlement{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Settlement{}, false, err
	}
	return out, true, nil
}

func (s *SettlementPGStore) FindSettlementByPayrollID(ctx context.Context, tenantID string, payrollID string) (types.Settlement, bool, error) {
	payrollID = strings.TrimSpace(payrollID)
	if !validUUID(payrollID) {
		return types.Settlement{}, false, nil
	}
	return s.findOne(ctx, tenantID, "payroll_id", payrollID)
}

func (s *SettlementPGStore) GetSettlement(ctx context.Context, tenantID string, settlementID string) (types.Settlement, bool, error) {
	settlementID = strings.TrimSpace(settlementID)
	if !validUUID(settlementID) {
		return types.Settlement{}, false, nil
	}
	return s.findOne(ctx, tenantID, "id", settlementID)
}

func (s *SettlementPGStore) ListSettlementsForEmployee(ctx context.Context, tenantID string, employeeID string) ([]types.Settlement, error) {
	employeeID = strings.TrimSpace(employeeID)
	if !validUUID(employeeID) {
		return []types.Settlement{}, nil
	}

	tx, err := beginTenantTx(ctx, s.pool, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT`+settlementColumns+`
	FROM payroll.settlements
	WHERE tenant_id = $1::uuid AND employee_id = $2::uuid
	ORDER BY period_start DESC, created_at DESC, id::text ASC
	`, tenantID, employeeID)
	if err != nil {
		return nil, err
	}

	out := []types.Settlement{}
	for rows.Next() {
		item, err := scanSettlement(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Deductions, err = loadDeductions(ctx, tx, tenantID, out[i].ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSettlement inserts the settlement row and its deduction lines in one
// transaction. The (tenant_id, payroll_id) unique constraint decides races.
func (s *SettlementPGStore) CreateSettlement(ctx context.Context, tenantID string, in types.Settlement) (types.Settlement, error) {
	calculation, err := json.Marshal(in.Calculation)
	if err != nil {
		return types.Settlement{}, fmt.Errorf("calculation: %w", err)
	}

	tx, err := beginTenantTx(ctx, s.pool, tenantID)
	if err != nil {
		return types.Settlement{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := in.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	if _, err := tx.Exec(ctx, `
	INSERT INTO payroll.settlements (
	  tenant_id, id, payroll_id, employee_id, period_start, period_end,
	  base_salary, overtime_pay, bonuses, additional_allowances, gross_income,
	  tax_amount, bpjs_kesehatan_employee, bpjs_kesehatan_company,
	  bpjs_ketenagakerjaan_employee, bpjs_ketenagakerjaan_company,
	  other_deductions, total_deductions, take_home_pay,
	  calculation, generated_by, created_at, updated_at
	) VALUES (
	  $1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::date, $6::date,
	  $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric,
	  $12::numeric, $13::numeric, $14::numeric,
	  $15::numeric, $16::numeric,
	  $17::numeric, $18::numeric, $19::numeric,
	  $20::jsonb, $21::text, $22, $23
	)
	`,
		tenantID, in.ID, in.PayrollID, in.EmployeeID, in.PeriodStart, in.PeriodEnd,
		in.BaseSalary.String(), in.OvertimePay.String(), in.Bonuses.String(), in.AdditionalAllowances.String(), in.GrossIncome.String(),
		in.TaxAmount.String(), in.BPJSKesehatanEmployee.String(), in.BPJSKesehatanCompany.String(),
		in.BPJSKetenagakerjaanEmployee.String(), in.BPJSKetenagakerjaanCompany.String(),
		in.OtherDeductions.String(), in.TotalDeductions.String(), in.TakeHomePay.String(),
		string(calculation), in.GeneratedBy, createdAt, updatedAt,
	); err != nil {
		if isSettlementUniqueViolation(err) {
			return types.Settlement{}, fmt.Errorf("%w: payroll %s", types.ErrSettlementConflict, in.PayrollID)
		}
		return types.Settlement{}, err
	}

	for i, line := range in.Deductions {
		if _, err := tx.Exec(ctx, `
		INSERT INTO payroll.settlement_deductions (tenant_id, id, settlement_id, seq, deduction_type, description, amount)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::int, $5::text, $6::text, $7::numeric)
		`, tenantID, line.ID, in.ID, i+1, string(line.Type), line.Description, line.Amount.String()); err != nil {
			return types.Settlement{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isSettlementUniqueViolation(err) {
			return types.Settlement{}, fmt.Errorf("%w: payroll %s", types.ErrSettlementConflict, in.PayrollID)
		}
		return types.Settlement{}, err
	}

	out := in
	out.TenantID = tenantID
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	return out, nil
}

func (s *SettlementPGStore) DeleteSettlement(ctx context.Context, tenantID string, settlementID string) (bool, error) {
	settlementID = strings.TrimSpace(settlementID)
	if !validUUID(settlementID) {
		return false, nil
	}

	tx, err := beginTenantTx(ctx, s.pool, tenantID)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Deduction lines go with the parent through ON DELETE CASCADE.
	tag, err := tx.Exec(ctx, `
	DELETE FROM payroll.settlements
	WHERE tenant_id = $1::uuid AND id = $2::uuid
	`, tenantID, settlementID)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
