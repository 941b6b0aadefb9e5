package redis

import (
	"context"
	"encoding/json"
	"time"

	"marketplace-credits/internal/domain/model"
)

// BalanceCache caches serialized balance rows under credits:user:<id>.
// The cache is never a source of truth: writes always go through the store
// and invalidate here afterwards.
type BalanceCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewBalanceCache(client RedisClient, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(userID string) string { return "credits:user:" + userID }

func (c *BalanceCache) StoreBalance(ctx context.Context, balance *model.CreditBalance) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, balanceKey(balance.UserID), data, c.ttl)
}

func (c *BalanceCache) GetBalance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	data, err := c.client.Get(ctx, balanceKey(userID))
	if err != nil {
		return nil, err
	}
	var balance model.CreditBalance
	if err := json.Unmarshal([]byte(data), &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// InvalidateBalance drops the cached entry; callers treat failures as
// non-fatal.
func (c *BalanceCache) InvalidateBalance(ctx context.Context, userID string) error {
	return c.client.Del(ctx, balanceKey(userID))
}
