//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/store/storetest"
)

// startPostgres runs a throwaway PostgreSQL container and returns its DSN.
// The test is skipped when no container runtime is reachable.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("warrant_test"),
		tcpostgres.WithUsername("warrant"),
		tcpostgres.WithPassword("warrant_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := ctr.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestStore(t *testing.T) {
	dsn := startPostgres(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()

		pgdb := pgdriver.New()
		require.NoError(t, pgdb.Open(ctx, dsn))
		db, err := grove.Open(pgdb)
		require.NoError(t, err)

		s := New(db)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.Migrate(ctx))

		// Subtests share the container; start each from empty tables.
		_, err = s.pgdb.NewRaw(`TRUNCATE warrant_user_permissions, warrant_user_roles,
			warrant_role_permissions, warrant_roles, warrant_permissions,
			warrant_actions, warrant_modules CASCADE`).Exec(ctx)
		require.NoError(t, err)
		return s
	})
}
