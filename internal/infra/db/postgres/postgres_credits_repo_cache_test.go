//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
)

func TestCreditBalanceRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	balance := &model.CreditBalance{ID: "bal-1", UserID: "user-123", AmountDemand: 40, AmountSub: 10}

	t.Run("FindByUserID should fetch from DB and set cache on miss", func(t *testing.T) {
		innerRepoCalled := false
		var cacheSets sync.Map

		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "", redis.Nil // Simulate cache miss
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				cacheSets.Store(key, value)
				return nil
			},
		}
		mockInner := &mockInnerBalanceRepo{
			FindByUserIDFunc: func(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
				innerRepoCalled = true
				return balance, nil
			},
		}

		decorator := NewCreditBalanceRepoCacheDecorator(mockInner, mockRedis, time.Minute)

		result, err := decorator.FindByUserID(ctx, nil, "user-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !innerRepoCalled {
			t.Error("inner repository should be called on a cache miss")
		}
		if _, ok := cacheSets.Load("credits:user:user-123"); !ok {
			t.Error("expected the balance key to be warmed after the miss")
		}
		if result == nil || result.ID != "bal-1" || result.AmountDemand != 40 {
			t.Error("did not return the correct balance from the inner repository")
		}
	})

	t.Run("FindByUserID should serve a warm cache without touching the DB", func(t *testing.T) {
		cached, _ := json.Marshal(balance)
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(cached), nil
			},
		}
		mockInner := &mockInnerBalanceRepo{
			FindByUserIDFunc: func(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
				t.Error("inner repository must not be called on a cache hit")
				return nil, nil
			},
		}

		decorator := NewCreditBalanceRepoCacheDecorator(mockInner, mockRedis, time.Minute)

		result, err := decorator.FindByUserID(ctx, nil, "user-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result == nil || result.AmountSub != 10 {
			t.Error("cached balance was not decoded correctly")
		}
	})

	t.Run("Save should invalidate the balance key", func(t *testing.T) {
		var deletedKeys sync.Map
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				for _, k := range keys {
					deletedKeys.Store(k, true)
				}
				return nil
			},
		}
		mockInner := &mockInnerBalanceRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
				return nil
			},
		}

		decorator := NewCreditBalanceRepoCacheDecorator(mockInner, mockRedis, time.Minute)

		if err := decorator.Save(ctx, nil, balance); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := deletedKeys.Load("credits:user:user-123"); !ok {
			t.Error("did not invalidate the cached balance on save")
		}
	})

	t.Run("SoftDelete should invalidate the balance key", func(t *testing.T) {
		var deletedKeys sync.Map
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				for _, k := range keys {
					deletedKeys.Store(k, true)
				}
				return nil
			},
		}
		mockInner := &mockInnerBalanceRepo{
			SoftDeleteFunc: func(ctx context.Context, tx repository.Tx, userID string) error {
				return nil
			},
		}

		decorator := NewCreditBalanceRepoCacheDecorator(mockInner, mockRedis, time.Minute)

		if err := decorator.SoftDelete(ctx, nil, "user-123"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := deletedKeys.Load("credits:user:user-123"); !ok {
			t.Error("did not invalidate the cached balance on delete")
		}
	})
}
