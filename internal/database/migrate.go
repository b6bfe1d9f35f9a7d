package database

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var gooseRunFunc = goose.RunContext // mockable

// Migrate runs a goose command ("up", "down", "status", "version", ...)
// against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseRunFunc(ctx, command, db, "migrations", args...)
}
