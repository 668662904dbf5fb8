package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMigrate(t *testing.T) {
	tx := &stubTx{}
	if err := Migrate(context.Background(), tx); err != nil {
		t.Fatal(err)
	}
	if len(tx.execSQLs) != 1 || tx.execSQLs[0] != SchemaSQL {
		t.Fatalf("execs=%d", len(tx.execSQLs))
	}
	for _, want := range []string{
		"settlements_tenant_payroll_unique",
		"ON DELETE CASCADE",
		"payroll.rate_settings",
		"iam.tenant_domains",
		"app.current_tenant",
	} {
		if !strings.Contains(SchemaSQL, want) {
			t.Fatalf("schema missing %q", want)
		}
	}

	if err := Migrate(context.Background(), &stubTx{execErr: errors.New("boom")}); err == nil {
		t.Fatal("expected error")
	}
}
