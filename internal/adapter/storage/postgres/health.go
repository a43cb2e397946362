package postgres

import (
	"context"
	"errors"
)

// HealthCheck implements ports.HealthChecker for PostgreSQL. The ledger writes on
// every debit, so a connection to a read-only standby is reported as unhealthy.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks that the server answers and accepts writes.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var standby bool
	if err := h.pool.QueryRow(ctx, "SELECT pg_is_in_recovery()").Scan(&standby); err != nil {
		return err
	}
	if standby {
		return errors.New("connected to a read-only standby")
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
