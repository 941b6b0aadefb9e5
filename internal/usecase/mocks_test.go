// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/adapter"
	"marketplace-credits/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// memBalanceRepo is a small in-memory implementation used by unit tests.
type memBalanceRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.CreditBalance // by UserID
	saveErr error                           // used by tests to simulate save failures
	findErr error
}

func newMemBalanceRepo() *memBalanceRepo {
	return &memBalanceRepo{store: map[string]*model.CreditBalance{}}
}

func (m *memBalanceRepo) Create(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ex, ok := m.store[b.UserID]; ok && ex.DeletedAt == nil {
		return domain.ErrAlreadyExists
	}
	cp := *b
	m.store[b.UserID] = &cp
	return nil
}

func (m *memBalanceRepo) Save(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.store[b.UserID] = &cp
	return nil
}

func (m *memBalanceRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[userID]
	if !ok || b.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBalanceRepo) SoftDelete(ctx context.Context, tx repository.Tx, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[userID]
	if !ok || b.DeletedAt != nil {
		return domain.ErrNotFound
	}
	now := time.Now()
	b.DeletedAt = &now
	return nil
}

// memHistoryRepo collects appended entries in order.
type memHistoryRepo struct {
	mu        sync.RWMutex
	entries   []*model.CreditHistoryEntry
	appendErr error
}

func newMemHistoryRepo() *memHistoryRepo { return &memHistoryRepo{} }

func (m *memHistoryRepo) Append(ctx context.Context, tx repository.Tx, e *model.CreditHistoryEntry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memHistoryRepo) ListByUserID(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.CreditHistoryEntry, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*model.CreditHistoryEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			all = append(all, e)
		}
	}
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// byUser returns the user's entries in append order.
func (m *memHistoryRepo) byUser(userID string) []*model.CreditHistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.CreditHistoryEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// memPromoRepo is an in-memory promo store with optional failure injection.
type memPromoRepo struct {
	mu           sync.RWMutex
	codes        map[string]*model.PromoCode // by Code
	usages       []*model.PromoCodeUsage
	saveErr      error
	decrementErr error
	insertErr    error
}

func newMemPromoRepo() *memPromoRepo {
	return &memPromoRepo{codes: map[string]*model.PromoCode{}}
}

func (m *memPromoRepo) put(pc *model.PromoCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pc
	m.codes[pc.Code] = &cp
}

func (m *memPromoRepo) byID(id string) *model.PromoCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pc := range m.codes {
		if pc.ID == id {
			return pc
		}
	}
	return nil
}

func (m *memPromoRepo) Save(ctx context.Context, tx repository.Tx, pc *model.PromoCode) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.put(pc)
	return nil
}

func (m *memPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pc, ok := m.codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *pc
	return &cp, nil
}

func (m *memPromoRepo) DecrementAvailability(ctx context.Context, tx repository.Tx, promoCodeID string) error {
	if m.decrementErr != nil {
		return m.decrementErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pc := range m.codes {
		if pc.ID == promoCodeID {
			if pc.AmountAvailable <= 0 {
				return domain.ErrPromoCodeExhausted
			}
			pc.AmountAvailable--
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memPromoRepo) Delete(ctx context.Context, tx repository.Tx, promoCodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, pc := range m.codes {
		if pc.ID == promoCodeID {
			delete(m.codes, code)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memPromoRepo) DeactivateExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, pc := range m.codes {
		if pc.Active && !pc.ExpirationDate.After(now) {
			pc.Active = false
			n++
		}
	}
	return n, nil
}

func (m *memPromoRepo) InsertUsage(ctx context.Context, tx repository.Tx, u *model.PromoCodeUsage) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.usages = append(m.usages, &cp)
	return nil
}

func (m *memPromoRepo) SetUsageTransactionID(ctx context.Context, tx repository.Tx, usageID, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usages {
		if u.ID == usageID {
			tid := transactionID
			u.TransactionID = &tid
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memPromoRepo) HasUsageByUser(ctx context.Context, tx repository.Tx, promoCodeID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.usages {
		if u.PromoCodeID == promoCodeID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPromoRepo) CountUsages(ctx context.Context, tx repository.Tx, promoCodeID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, u := range m.usages {
		if u.PromoCodeID == promoCodeID {
			n++
		}
	}
	return n, nil
}

// memMembershipRepo is an in-memory membership store.
type memMembershipRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Membership // by UserID
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{store: map[string]*model.Membership{}}
}

func (m *memMembershipRepo) Save(ctx context.Context, tx repository.Tx, mem *model.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mem
	m.store[mem.UserID] = &cp
	return nil
}

func (m *memMembershipRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *memMembershipRepo) FindByStripeCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.store {
		if mem.StripeCustomerID == customerID {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memMembershipRepo) UpdateStatus(ctx context.Context, tx repository.Tx, userID string, status model.SubscriptionStatus, subscriptionID *string, lastPaymentDate *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	mem.SubscriptionStatus = status
	if subscriptionID != nil {
		mem.StripeSubscriptionID = subscriptionID
	}
	if lastPaymentDate != nil {
		mem.LastPaymentDate = lastPaymentDate
	}
	return nil
}

// mockTxManager runs the function without a live transaction handle. It
// records whether the function returned an error (which a real manager would
// turn into a rollback).
type mockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	beginErr   error
	rolledBack bool
	lastOpts   pgx.TxOptions
}

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.beginErr != nil {
		return m.beginErr
	}
	m.lastOpts = txOpt
	if err := fn(ctx, repository.NoTX); err != nil {
		m.rolledBack = true
		return err
	}
	return nil
}

// mockGateway mocks the payment provider port.
type mockGateway struct {
	ConfirmPaymentFunc     func(ctx context.Context, amount int64, meta map[string]string) (string, error)
	CreateSubscriptionFunc func(ctx context.Context, customerID, planType string) (string, error)
	CancelSubscriptionFunc func(ctx context.Context, subscriptionID string) error
}

var _ adapter.PaymentGateway = (*mockGateway)(nil)

func (m *mockGateway) Name() string { return "mockpay" }

func (m *mockGateway) ConfirmPayment(ctx context.Context, amount int64, meta map[string]string) (string, error) {
	if m.ConfirmPaymentFunc != nil {
		return m.ConfirmPaymentFunc(ctx, amount, meta)
	}
	return "pi_test", nil
}

func (m *mockGateway) CreateSubscription(ctx context.Context, customerID, planType string) (string, error) {
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, customerID, planType)
	}
	return "sub_test", nil
}

func (m *mockGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, subscriptionID)
	}
	return nil
}

// mockLocker grants every lock unless told otherwise.
type mockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	UnlockFunc  func(ctx context.Context, key, token string) error
	lockedKeys  []string
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	m.lockedKeys = append(m.lockedKeys, key)
	return "token", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, key, token)
	}
	return nil
}

// mockInvalidator records cache invalidations.
type mockInvalidator struct {
	mu      sync.Mutex
	userIDs []string
	err     error
}

func (m *mockInvalidator) InvalidateBalance(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userIDs = append(m.userIDs, userID)
	return m.err
}
