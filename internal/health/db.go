package health

import (
	"context"
	"database/sql"
	"fmt"
)

// DBChecker checks PostgreSQL connectivity.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a database checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// Name identifies the check in readiness output.
func (d *DBChecker) Name() string { return "database" }

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
