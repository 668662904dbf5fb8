package main

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

var settlementSchemas = []string{"iam", "hr", "payroll"}

// tryEnsureRole creates a NOBYPASSRLS role with DML on the settlement
// schemas so rls-smoke does not run as the table owner.
func tryEnsureRole(ctx context.Context, conn *pgx.Conn, role string) error {
	if !validSQLIdent(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	stmt := fmt.Sprintf(`DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN
    EXECUTE 'CREATE ROLE %s NOBYPASSRLS';
  END IF;
END
$$;`, role, role)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return err
	}
	for _, stmt := range grantStatements(role) {
		_, _ = conn.Exec(ctx, stmt)
	}
	return nil
}

func grantStatements(role string) []string {
	out := make([]string, 0, 2*len(settlementSchemas))
	for _, schema := range settlementSchemas {
		out = append(out,
			`GRANT USAGE ON SCHEMA `+schema+` TO `+role+`;`,
			`GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA `+schema+` TO `+role+`;`,
		)
	}
	return out
}

func trySetRole(ctx context.Context, tx pgx.Tx, role string) bool {
	if _, err := tx.Exec(ctx, `SET ROLE `+role+`;`); err != nil {
		return false
	}
	return true
}

var reSQLIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validSQLIdent(s string) bool {
	return reSQLIdent.MatchString(s)
}
