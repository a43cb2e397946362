package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthKey = "wallet_ledger:health"

// HealthCheck implements ports.HealthChecker for Redis. The debit cache and
// the rate limiter both write, so the probe is a short-lived SET rather than PING.
type HealthCheck struct {
	client goredis.UniversalClient
}

// NewHealthCheck creates a Redis health checker.
func NewHealthCheck(client goredis.UniversalClient) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.client.Set(ctx, healthKey, time.Now().Unix(), 10*time.Second).Err()
}

func (h *HealthCheck) Name() string {
	return "redis"
}
