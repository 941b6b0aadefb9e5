package repository

import (
	"context"
	"time"

	"marketplace-credits/internal/domain/model"
)

// PromoCodeRepository is the port for promo code definitions and usages.
type PromoCodeRepository interface {
	// Save inserts or updates a promo code definition.
	Save(ctx context.Context, tx Tx, code *model.PromoCode) error
	// FindByCode loads a code by its case-sensitive code string. Returns
	// domain.ErrNotFound if missing. Locks the row when tx is live.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	// DecrementAvailability atomically decrements amount_available by one,
	// but only while it is still positive. Returns domain.ErrPromoCodeExhausted
	// when the counter was already zero (the race for the last slot is decided
	// here, in the store).
	DecrementAvailability(ctx context.Context, tx Tx, promoCodeID string) error
	// Delete removes the code definition. Callers must verify the code has no
	// usages first.
	Delete(ctx context.Context, tx Tx, promoCodeID string) error
	// DeactivateExpired flags active codes whose expiration date has passed.
	// Returns the number of codes deactivated.
	DeactivateExpired(ctx context.Context, tx Tx, now time.Time) (int, error)

	// InsertUsage appends one immutable usage row.
	InsertUsage(ctx context.Context, tx Tx, usage *model.PromoCodeUsage) error
	// SetUsageTransactionID correlates a usage with a payment once the
	// gateway has confirmed it.
	SetUsageTransactionID(ctx context.Context, tx Tx, usageID, transactionID string) error
	// HasUsageByUser reports whether the user already redeemed this code.
	HasUsageByUser(ctx context.Context, tx Tx, promoCodeID, userID string) (bool, error)
	// CountUsages returns the total redemptions of a code.
	CountUsages(ctx context.Context, tx Tx, promoCodeID string) (int64, error)
}
