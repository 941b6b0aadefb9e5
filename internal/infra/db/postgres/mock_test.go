//go:build !integration

package postgres

import (
	"context"
	"time"

	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
	red "marketplace-credits/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerBalanceRepo mocks the database repository that the balance
// decorator wraps.
type mockInnerBalanceRepo struct {
	CreateFunc       func(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error
	SaveFunc         func(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error
	FindByUserIDFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error)
	SoftDeleteFunc   func(ctx context.Context, tx repository.Tx, userID string) error
}

func (m *mockInnerBalanceRepo) Create(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	return m.CreateFunc(ctx, tx, b)
}
func (m *mockInnerBalanceRepo) Save(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	return m.SaveFunc(ctx, tx, b)
}
func (m *mockInnerBalanceRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
	return m.FindByUserIDFunc(ctx, tx, userID)
}
func (m *mockInnerBalanceRepo) SoftDelete(ctx context.Context, tx repository.Tx, userID string) error {
	return m.SoftDeleteFunc(ctx, tx, userID)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
