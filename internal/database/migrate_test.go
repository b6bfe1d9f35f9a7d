package database

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })

	var gotCommand, gotDir string
	var gotArgs []string
	gooseRunFunc = func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
		gotCommand, gotDir, gotArgs = command, dir, args
		return nil
	}

	err := Migrate(context.Background(), nil, "up-to", "1")
	require.NoError(t, err)
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, "migrations", gotDir)
	assert.Equal(t, []string{"1"}, gotArgs)
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := fs.ReadFile(migrations, "migrations/00001_ledger.sql")
	require.NoError(t, err)

	ddl := string(data)
	assert.True(t, strings.HasPrefix(ddl, "-- +goose Up"))
	assert.Contains(t, ddl, "UNIQUE (student_id, source_kind, source_id)")
	assert.Contains(t, ddl, "CHECK (balance >= 0)")
	assert.Contains(t, ddl, "-- +goose Down")
}
