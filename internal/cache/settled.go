package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultSettledTTL = 72 * time.Hour

// SettledCache keeps an "order settled" marker per trade id. The marker is written
// only after the ledger committed SUCCESS. A nil *SettledCache is a valid no-op cache.
type SettledCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSettledCache(rdb *redis.Client, ttl time.Duration) *SettledCache {
	if ttl <= 0 {
		ttl = DefaultSettledTTL
	}
	return &SettledCache{rdb: rdb, ttl: ttl}
}

func settledKey(tradeID string) string {
	return fmt.Sprintf("order:settled:%s", tradeID)
}

func (c *SettledCache) MarkSettled(ctx context.Context, tradeID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, settledKey(tradeID), time.Now().Unix(), c.ttl).Err()
}

func (c *SettledCache) IsSettled(ctx context.Context, tradeID string) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	err := c.rdb.Get(ctx, settledKey(tradeID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
