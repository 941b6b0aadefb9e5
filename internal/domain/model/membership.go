package model

import (
	"time"

	"marketplace-credits/internal/domain"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPastDue   SubscriptionStatus = "pastDue"
	SubscriptionStatusUnpaid    SubscriptionStatus = "unpaid"
)

// Membership links a user to a payment-provider customer and tracks the
// subscription lifecycle driven by provider webhooks.
type Membership struct {
	ID                   string
	UserID               string // unique
	StripeCustomerID     string
	StripeSubscriptionID *string
	SubscriptionStatus   SubscriptionStatus
	PlanType             string
	LastPaymentDate      *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func NewMembership(id, userID, stripeCustomerID, planType string) (*Membership, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if userID == "" || stripeCustomerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Membership{
		ID:                 id,
		UserID:             userID,
		StripeCustomerID:   stripeCustomerID,
		SubscriptionStatus: SubscriptionStatusInactive,
		PlanType:           planType,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (m *Membership) IsActive() bool { return m.SubscriptionStatus == SubscriptionStatusActive }
