//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/platinummonkey/matsecom/pkg/storage/storagetest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its connection string
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("matsecom_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestPostgresStoreContract(t *testing.T) {
	connStr := setupPostgres(t)

	storagetest.Run(t, func(t *testing.T) storage.Store {
		cfg := storage.DefaultConfig()
		cfg.Type = "postgres"
		cfg.PostgresURL = connStr

		s, err := Open(context.Background(), cfg, logrus.New())
		require.NoError(t, err)

		// Each subtest starts from empty tables.
		_, err = s.ConnectionManager().Primary().Exec(`TRUNCATE invoices, sessions, subscribers RESTART IDENTITY`)
		require.NoError(t, err)

		t.Cleanup(func() { s.Close() })
		return s
	})
}
