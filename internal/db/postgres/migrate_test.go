package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/db/postgres"
	"freeloot.dev/lootscraper/internal/db/postgres/pgtest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	pool := pgtest.Open(t, "migrate")
	ctx := context.Background()

	require.NoError(t, postgres.Migrate(ctx, pool, postgres.Migrations))

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(postgres.Migrations), n)

	applied, err := postgres.ExecMigrationSQL(ctx, pool, 1, `SELECT 1/0`)
	require.NoError(t, err)
	assert.False(t, applied, "recorded versions are not run again")
}

func TestFailedMigrationIsRolledBack(t *testing.T) {
	pool := pgtest.Open(t, "migrate")
	ctx := context.Background()

	_, err := postgres.ExecMigrationSQL(ctx, pool, 100, `CREATE TABLE broken (id INTEGER); SELECT 1/0`)
	require.Error(t, err)

	var recorded, tableLeft bool
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = 100)`).Scan(&recorded))
	require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass('broken') IS NOT NULL`).Scan(&tableLeft))
	assert.False(t, recorded)
	assert.False(t, tableLeft)

	applied, err := postgres.ExecMigrationSQL(ctx, pool, 100, `CREATE TABLE fixed (id INTEGER)`)
	require.NoError(t, err)
	assert.True(t, applied)
}
