package model

import (
	"time"

	"marketplace-credits/internal/domain"

	"github.com/google/uuid"
)

// CreditBalance is the per-user ledger row. Credits live in two buckets:
// AmountDemand holds pay-as-you-go credits purchased directly, AmountSub holds
// credits granted by an active subscription plan. Neither bucket may ever go
// negative. Rows are soft-deleted only, since history entries reference them.
type CreditBalance struct {
	ID           string
	UserID       string
	AmountDemand int64
	AmountSub    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

func NewCreditBalance(id, userID string, amountDemand, amountSub int64) (*CreditBalance, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amountDemand < 0 || amountSub < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &CreditBalance{
		ID:           id,
		UserID:       userID,
		AmountDemand: amountDemand,
		AmountSub:    amountSub,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Total is the sum of both buckets.
func (b *CreditBalance) Total() int64 { return b.AmountDemand + b.AmountSub }

func (b *CreditBalance) IsZero() bool { return b == nil || b.ID == "" }

func (b *CreditBalance) Deleted() bool { return b != nil && b.DeletedAt != nil }
