package persistence

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"

	settlementUniqueConstraint = "settlements_tenant_payroll_unique"
)

func pgErrorCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func pgConstraintName(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.ConstraintName)
	}
	return ""
}

// isSettlementUniqueViolation reports whether err is the (tenant_id,
// payroll_id) uniqueness guard firing. An unnamed 23505 on the settlements
// insert is treated the same way.
func isSettlementUniqueViolation(err error) bool {
	if pgErrorCode(err) != pgUniqueViolation {
		return false
	}
	name := pgConstraintName(err)
	return name == "" || name == settlementUniqueConstraint
}
