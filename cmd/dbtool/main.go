package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/internal/server"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/infrastructure/persistence"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/services"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const usage = "usage: dbtool <migrate|seed-rates|rls-smoke|issue-token> [args]"

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		fatalf(usage)
	}

	switch os.Args[1] {
	case "migrate":
		migrate(os.Args[2:])
	case "seed-rates":
		seedRates(os.Args[2:])
	case "rls-smoke":
		rlsSmoke(os.Args[2:])
	case "issue-token":
		issueToken(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s\n%s", os.Args[1], usage)
	}
}

func newFlagSet(name string, url *string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if url != nil {
		fs.StringVar(url, "url", server.DBDSNFromEnv(), "postgres connection string (default from DATABASE_URL / DB_*)")
	}
	return fs
}

func migrate(args []string) {
	var url string
	fs := newFlagSet("migrate", &url)
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	if err := persistence.Migrate(ctx, conn); err != nil {
		fatal(err)
	}
	fmt.Println("[migrate] OK")
}

func seedRates(args []string) {
	var url, tenant, path string
	fs := newFlagSet("seed-rates", &url)
	fs.StringVar(&tenant, "tenant", "", "tenant uuid")
	fs.StringVar(&path, "defaults", os.Getenv("RATE_DEFAULTS_PATH"), "rate defaults YAML (default: built-in)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	tenantID, err := parseTenantID(tenant)
	if err != nil {
		fatal(err)
	}

	settings, err := services.LoadRateDefaults(path)
	if err != nil {
		fatal(err)
	}
	if len(settings) == 0 {
		fatalf("no rate settings to seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer pool.Close()

	if err := persistence.NewRateSettingPGStore(pool).UpsertRateSettings(ctx, tenantID, settings); err != nil {
		fatal(err)
	}
	fmt.Printf("[seed-rates] tenant=%s keys=%d OK\n", tenantID, len(settings))
}

// rlsSmoke checks that rate_settings rows written under one tenant are
// invisible under another, and that reads fail closed without a tenant.
func rlsSmoke(args []string) {
	var url string
	fs := newFlagSet("rls-smoke", &url)
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	_ = tryEnsureRole(ctx, conn, "app_nobypassrls")

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_ = trySetRole(ctx, tx, "app_nobypassrls")

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_failclosed;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, `SELECT count(*) FROM payroll.rate_settings;`)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_failclosed;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected fail-closed error when app.current_tenant is missing")
	}

	tenantA := "00000000-0000-0000-0000-00000000000a"
	tenantB := "00000000-0000-0000-0000-00000000000b"
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantA); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO payroll.rate_settings (tenant_id, key, value) VALUES ($1, 'RLS_SMOKE', '1');`, tenantA); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_cross_insert;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO payroll.rate_settings (tenant_id, key, value) VALUES ($1, 'RLS_SMOKE', '1');`, tenantB)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_cross_insert;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected RLS rejection on cross-tenant insert")
	}

	count := func() int {
		var n int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM payroll.rate_settings WHERE key = 'RLS_SMOKE';`).Scan(&n); err != nil {
			fatal(err)
		}
		return n
	}
	if n := count(); n != 1 {
		fatalf("expected count=1 under tenant A, got %d", n)
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantB); err != nil {
		fatal(err)
	}
	if n := count(); n != 0 {
		fatalf("expected count=0 under tenant B, got %d", n)
	}

	fmt.Println("[rls-smoke] OK")
}

func issueToken(args []string) {
	var tenant, subject, role, email string
	var ttl time.Duration
	fs := newFlagSet("issue-token", nil)
	fs.StringVar(&tenant, "tenant", "", "tenant uuid")
	fs.StringVar(&subject, "sub", "", "principal id written to generated_by")
	fs.StringVar(&role, "role", "payroll-operator", "tenant-admin|payroll-operator|payroll-viewer")
	fs.StringVar(&email, "email", "", "optional email claim")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	tenantID, err := parseTenantID(tenant)
	if err != nil {
		fatal(err)
	}
	if strings.TrimSpace(subject) == "" {
		fatalf("missing --sub")
	}

	v, err := server.NewTokenVerifier(os.Getenv("JWT_SECRET"), os.Getenv("JWT_ISSUER"))
	if err != nil {
		fatal(err)
	}
	tok, err := v.IssueToken(server.Principal{ID: subject, TenantID: tenantID, RoleSlug: role, Email: email}, ttl)
	if err != nil {
		fatal(err)
	}
	fmt.Println(tok)
}

func parseTenantID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("missing --tenant")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid --tenant %q: %w", raw, err)
	}
	return id.String(), nil
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
