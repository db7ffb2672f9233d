// Package dbtest starts a disposable PostgreSQL container for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/metricshour/metricshour/internal/db"
)

// Image is the PostgreSQL image used for tests.
const Image = "postgres:16-alpine"

// NewPostgres starts a PostgreSQL container, applies all migrations and
// returns a connection. The test is skipped when Docker is unavailable.
// The container is removed when the test finishes.
func NewPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, Image,
		postgres.WithDatabase("metricshour"),
		postgres.WithUsername("metricshour"),
		postgres.WithPassword("metricshour"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	conn, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := db.Migrate(ctx, conn, nil); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}
