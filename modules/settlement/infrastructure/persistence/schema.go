package persistence

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var SchemaSQL string

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate applies the settlement schema. Every statement is idempotent.
func Migrate(ctx context.Context, db execer) error {
	_, err := db.Exec(ctx, SchemaSQL)
	return err
}
