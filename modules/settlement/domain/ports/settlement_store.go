package ports

import (
	"context"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
)

// SettlementStore is the tenant data accessor for settlements. Every method
// is scoped to tenantID.
type SettlementStore interface {
	GetPayrollWithEmployee(ctx context.Context, tenantID string, payrollID string) (types.PayrollRecord, bool, error)

	FindSettlementByPayrollID(ctx context.Context, tenantID string, payrollID string) (types.Settlement, bool, error)
	GetSettlement(ctx context.Context, tenantID string, settlementID string) (types.Settlement, bool, error)
	ListSettlementsForEmployee(ctx context.Context, tenantID string, employeeID string) ([]types.Settlement, error)

	// CreateSettlement writes the settlement and its deduction lines as one
	// unit. A second settlement for the same payroll fails with
	// types.ErrSettlementConflict.
	CreateSettlement(ctx context.Context, tenantID string, s types.Settlement) (types.Settlement, error)
	DeleteSettlement(ctx context.Context, tenantID string, settlementID string) (bool, error)
}
