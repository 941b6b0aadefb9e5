package model

import (
	"time"

	"marketplace-credits/internal/domain"

	"github.com/google/uuid"
)

// PromoCode grants a bonus percentage on a credit purchase. Codes carry a
// global redemption cap (AllowedTimes) and a live counter (AmountAvailable)
// that is decremented atomically on each successful use.
//
// Lifecycle: active -> exhausted (AmountAvailable == 0); orthogonally a code
// may be cancelled (terminal, admin-only) or expire, which is a computed
// predicate on the clock rather than a stored transition.
type PromoCode struct {
	ID              string
	Code            string // case-sensitive, unique
	Discount        int    // percentage, 0-100
	AllowedTimes    int
	AmountAvailable int
	ExpirationDate  time.Time
	Active          bool
	CancelledAt     *time.Time
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewPromoCode(id, code string, discount, allowedTimes int, expiration time.Time, createdBy string) (*PromoCode, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if code == "" || createdBy == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PromoCode{
		ID:              id,
		Code:            code,
		Discount:        discount,
		AllowedTimes:    allowedTimes,
		AmountAvailable: allowedTimes,
		ExpirationDate:  expiration,
		Active:          true,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (p *PromoCode) Expired(now time.Time) bool { return !p.ExpirationDate.After(now) }

func (p *PromoCode) Exhausted() bool { return p.AmountAvailable <= 0 }

func (p *PromoCode) Cancelled() bool { return p.CancelledAt != nil }

// BonusFor computes the bonus credits a purchase of amount earns with this
// code: amount + floor(amount*discount/100). The discount grants extra
// credits on top of the purchase rather than reducing the price.
func (p *PromoCode) BonusFor(amount int64) int64 {
	return amount + amount*int64(p.Discount)/100
}

// PromoCodeUsage records one successful redemption. One row per use,
// immutable; enforces the one-use-per-user policy.
type PromoCodeUsage struct {
	ID            string
	PromoCodeID   string
	UserID        string
	TransactionID *string // correlation to a payment, when known
	UsedAt        time.Time
}

func NewPromoCodeUsage(promoCodeID, userID string, transactionID *string) *PromoCodeUsage {
	return &PromoCodeUsage{
		ID:            uuid.NewString(),
		PromoCodeID:   promoCodeID,
		UserID:        userID,
		TransactionID: transactionID,
		UsedAt:        time.Now(),
	}
}
