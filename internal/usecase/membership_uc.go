// File: internal/usecase/membership_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/adapter"
	"marketplace-credits/internal/domain/ports/repository"
)

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

// MembershipUseCase tracks the payment-provider subscription lifecycle and
// grants subscription credits on successful invoices.
type MembershipUseCase interface {
	// LinkCustomer creates the membership row when a user first links a
	// payment customer.
	LinkCustomer(ctx context.Context, userID, stripeCustomerID, planType string) (*model.Membership, error)
	Get(ctx context.Context, userID string) (*model.Membership, error)
	// StartSubscription creates the provider subscription and stores its id.
	StartSubscription(ctx context.Context, userID string) (*model.Membership, error)
	// CancelMembership cancels the provider subscription and marks the
	// membership cancelled.
	CancelMembership(ctx context.Context, userID string) error
	// HandleSubscriptionEvent applies a provider webhook event: status
	// transitions, and on paid invoices the plan's subscription-credit grant.
	HandleSubscriptionEvent(ctx context.Context, event adapter.SubscriptionEvent) error
}

type membershipUC struct {
	memberships repository.MembershipRepository
	credits     CreditsUseCase
	gateway     adapter.PaymentGateway
	tm          repository.TransactionManager
	planCredits map[string]int64 // planType -> sub credits granted per paid invoice
	log         *zerolog.Logger
}

func NewMembershipUseCase(
	memberships repository.MembershipRepository,
	credits CreditsUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	planCredits map[string]int64,
	logger *zerolog.Logger,
) *membershipUC {
	l := logger.With().Str("component", "MembershipUC").Logger()
	return &membershipUC{
		memberships: memberships,
		credits:     credits,
		gateway:     gateway,
		tm:          tm,
		planCredits: planCredits,
		log:         &l,
	}
}

func (uc *membershipUC) LinkCustomer(ctx context.Context, userID, stripeCustomerID, planType string) (*model.Membership, error) {
	ve := domain.NewValidationError()
	if userID == "" {
		ve.Add("userId", "must not be empty")
	}
	if stripeCustomerID == "" {
		ve.Add("stripeCustomerId", "must not be empty")
	}
	if !ve.Empty() {
		return nil, ve
	}

	var created *model.Membership
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		existing, err := uc.memberships.FindByUserID(ctx, tx, userID)
		if err != nil && err != domain.ErrNotFound {
			return err
		}
		if existing != nil {
			return domain.NewBusinessRuleError("membership already exists for user %s", userID)
		}
		created, err = model.NewMembership("", userID, stripeCustomerID, planType)
		if err != nil {
			return err
		}
		return uc.memberships.Save(ctx, tx, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (uc *membershipUC) Get(ctx context.Context, userID string) (*model.Membership, error) {
	if userID == "" {
		return nil, NewValidationFailure("userId", "must not be empty")
	}
	return uc.memberships.FindByUserID(ctx, repository.NoTX, userID)
}

func (uc *membershipUC) StartSubscription(ctx context.Context, userID string) (*model.Membership, error) {
	m, err := uc.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m.StripeSubscriptionID != nil && m.IsActive() {
		return nil, domain.NewBusinessRuleError("user %s already has an active subscription", userID)
	}

	subID, err := uc.gateway.CreateSubscription(ctx, m.StripeCustomerID, m.PlanType)
	if err != nil {
		return nil, fmt.Errorf("create subscription for user %s: %w", userID, err)
	}
	if err := uc.memberships.UpdateStatus(ctx, repository.NoTX, userID, model.SubscriptionStatusActive, &subID, nil); err != nil {
		return nil, err
	}
	m.StripeSubscriptionID = &subID
	m.SubscriptionStatus = model.SubscriptionStatusActive
	return m, nil
}

func (uc *membershipUC) CancelMembership(ctx context.Context, userID string) error {
	m, err := uc.Get(ctx, userID)
	if err != nil {
		return err
	}
	if m.StripeSubscriptionID == nil {
		return domain.NewBusinessRuleError("user %s has no subscription to cancel", userID)
	}
	if err := uc.gateway.CancelSubscription(ctx, *m.StripeSubscriptionID); err != nil {
		return fmt.Errorf("cancel subscription for user %s: %w", userID, err)
	}
	return uc.memberships.UpdateStatus(ctx, repository.NoTX, userID, model.SubscriptionStatusCancelled, nil, nil)
}

func (uc *membershipUC) HandleSubscriptionEvent(ctx context.Context, event adapter.SubscriptionEvent) error {
	if event.CustomerID == "" {
		return NewValidationFailure("customerId", "must not be empty")
	}

	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		m, err := uc.memberships.FindByStripeCustomerID(ctx, tx, event.CustomerID)
		if err != nil {
			return err
		}

		switch event.Type {
		case adapter.EventSubscriptionCreated, adapter.EventSubscriptionUpdated:
			subID := event.SubscriptionID
			var subIDPtr *string
			if subID != "" {
				subIDPtr = &subID
			}
			return uc.memberships.UpdateStatus(ctx, tx, m.UserID, model.SubscriptionStatusActive, subIDPtr, nil)

		case adapter.EventSubscriptionDeleted:
			return uc.memberships.UpdateStatus(ctx, tx, m.UserID, model.SubscriptionStatusCancelled, nil, nil)

		case adapter.EventInvoicePaid:
			paidAt := event.OccurredAt
			if err := uc.memberships.UpdateStatus(ctx, tx, m.UserID, model.SubscriptionStatusActive, nil, &paidAt); err != nil {
				return err
			}
			planType := event.PlanType
			if planType == "" {
				planType = m.PlanType
			}
			grant, ok := uc.planCredits[planType]
			if !ok || grant <= 0 {
				uc.log.Warn().Str("plan", planType).Str("user_id", m.UserID).Msg("no credit grant configured for plan")
				return nil
			}
			if _, err := uc.credits.AddCreditsTx(ctx, tx, m.UserID, 0, grant,
				fmt.Sprintf("subscription credits for plan %s", planType)); err != nil {
				return err
			}
			uc.log.Info().Str("user_id", m.UserID).Int64("credits", grant).Str("plan", planType).Msg("subscription credits granted")
			return nil

		case adapter.EventInvoiceFailed:
			return uc.memberships.UpdateStatus(ctx, tx, m.UserID, model.SubscriptionStatusPastDue, nil, nil)

		default:
			uc.log.Debug().Str("type", string(event.Type)).Msg("ignoring unhandled subscription event")
			return nil
		}
	})
}
