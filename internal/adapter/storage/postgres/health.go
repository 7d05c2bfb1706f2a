package postgres

import (
	"context"
	"fmt"
)

// HealthCheck reports PostgreSQL as healthy when the ledger schema is
// reachable, so a database without migrations shows up as degraded.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1 FROM marketplace_events LIMIT 1"); err != nil {
		return fmt.Errorf("ledger schema: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
