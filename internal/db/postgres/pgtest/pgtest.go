// Package pgtest gives repository tests a migrated scratch schema on the
// database named by LOOTSCRAPER_TEST_DATABASE_URL.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"freeloot.dev/lootscraper/internal/db/postgres"
)

// EnvURL holds the connection string of the test database.
const EnvURL = "LOOTSCRAPER_TEST_DATABASE_URL"

// Open recreates the schema lootscraper_test_<name>, migrates it and returns
// a pool bound to it. The test is skipped when EnvURL is not set.
// Packages use distinct names since they may run at the same time.
func Open(t *testing.T, name string) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s is not set", EnvURL)
	}
	ctx := context.Background()
	schema := "lootscraper_test_" + name
	ident := pgx.Identifier{schema}.Sanitize()

	admin, err := postgres.NewPool(ctx, postgres.Options{URL: url, MaxConns: 1})
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	_, err = admin.Exec(ctx, "DROP SCHEMA IF EXISTS "+ident+" CASCADE")
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+ident)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+ident+" CASCADE")
	})

	pool, err := postgres.NewPool(ctx, postgres.Options{URL: url, MaxConns: 4, Schema: schema})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool, postgres.Migrations))
	return pool
}
