package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DebitCache implements ports.ProcessedDebitCache. It remembers applied
// request ids so redeliveries are rejected without opening a transaction.
// The ledger_entries unique index stays authoritative.
type DebitCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewDebitCache creates a new Redis-backed cache of applied debits.
func NewDebitCache(client goredis.UniversalClient) *DebitCache {
	return &DebitCache{
		client: client,
		prefix: "processed_debit:",
	}
}

// Seen reports whether requestID was remembered and has not expired.
func (c *DebitCache) Seen(ctx context.Context, requestID string) (bool, error) {
	_, err := c.client.Get(ctx, c.prefix+requestID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis processed debit get: %w", err)
	}
	return true, nil
}

// Remember marks requestID as applied for ttl.
func (c *DebitCache) Remember(ctx context.Context, requestID string, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+requestID, time.Now().UTC().Format(time.RFC3339), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis processed debit set: %w", err)
	}
	return nil
}
