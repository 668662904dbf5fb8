package authz

const (
	RoleTenantAdmin     = "tenant-admin"
	RolePayrollOperator = "payroll-operator"
	RolePayrollViewer   = "payroll-viewer"
	RoleAnonymous       = "anonymous"
)

const (
	ActionRead     = "read"
	ActionGenerate = "generate"
	ActionDelete   = "delete"
	ActionAdmin    = "admin"
)

const (
	ObjectPayrollSettlements = "payroll.settlements"
	ObjectPayrollRateConfig  = "payroll.rate-config"
)
