package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"

	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
	"marketplace-credits/internal/infra/metrics"
	red "marketplace-credits/internal/infra/redis"
)

var _ repository.CreditBalanceRepository = (*creditBalanceRepoCacheDecorator)(nil)

// creditBalanceRepoCacheDecorator serves balance reads from Redis under
// credits:user:<id>. Writes always go through the inner repo and invalidate
// the key first; transactional reads bypass the cache entirely because they
// must observe (and lock) the live row.
type creditBalanceRepoCacheDecorator struct {
	inner repository.CreditBalanceRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewCreditBalanceRepoCacheDecorator(inner repository.CreditBalanceRepository, cache red.RedisClient, ttl time.Duration) repository.CreditBalanceRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &creditBalanceRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func cacheKey(userID string) string { return "credits:user:" + userID }

func (d *creditBalanceRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	_ = d.cache.Del(ctx, cacheKey(b.UserID))
	return d.inner.Create(ctx, tx, b)
}

func (d *creditBalanceRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	_ = d.cache.Del(ctx, cacheKey(b.UserID))
	return d.inner.Save(ctx, tx, b)
}

func (d *creditBalanceRepoCacheDecorator) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
	if _, ok := tx.(pgx.Tx); ok {
		// Row lock required; the cache cannot provide it.
		return d.inner.FindByUserID(ctx, tx, userID)
	}

	key := cacheKey(userID)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var b model.CreditBalance
		if json.Unmarshal([]byte(val), &b) == nil {
			metrics.IncCacheRequest("balance", "hit")
			return &b, nil
		}
	}

	metrics.IncCacheRequest("balance", "miss")
	b, err := d.inner.FindByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if b != nil {
		if bytes, err := json.Marshal(b); err == nil {
			_ = d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return b, nil
}

func (d *creditBalanceRepoCacheDecorator) SoftDelete(ctx context.Context, tx repository.Tx, userID string) error {
	_ = d.cache.Del(ctx, cacheKey(userID))
	return d.inner.SoftDelete(ctx, tx, userID)
}
