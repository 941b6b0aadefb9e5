package repository

import (
	"context"
	"time"

	"marketplace-credits/internal/domain/model"
)

// MembershipRepository is the port for payment-provider membership links.
type MembershipRepository interface {
	// Save inserts a new membership row; domain.ErrAlreadyExists when the
	// user already has one. Status changes go through UpdateStatus.
	Save(ctx context.Context, tx Tx, m *model.Membership) error
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Membership, error)
	// FindByStripeCustomerID resolves webhook payloads, which carry the
	// provider customer id rather than ours.
	FindByStripeCustomerID(ctx context.Context, tx Tx, customerID string) (*model.Membership, error)
	// UpdateStatus sets the subscription status and, when non-nil, the last
	// payment date and subscription id.
	UpdateStatus(ctx context.Context, tx Tx, userID string, status model.SubscriptionStatus, subscriptionID *string, lastPaymentDate *time.Time) error
}
