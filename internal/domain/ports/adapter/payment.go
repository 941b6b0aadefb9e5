package adapter

import (
	"context"
	"time"
)

// SubscriptionEventType enumerates the provider webhook events the ledger
// reacts to.
type SubscriptionEventType string

const (
	EventSubscriptionCreated SubscriptionEventType = "customer.subscription.created"
	EventSubscriptionUpdated SubscriptionEventType = "customer.subscription.updated"
	EventSubscriptionDeleted SubscriptionEventType = "customer.subscription.deleted"
	EventInvoicePaid         SubscriptionEventType = "invoice.paid"
	EventInvoiceFailed       SubscriptionEventType = "invoice.payment_failed"
)

// SubscriptionEvent is a provider-agnostic webhook payload.
type SubscriptionEvent struct {
	Type           SubscriptionEventType
	CustomerID     string
	SubscriptionID string
	PlanType       string
	OccurredAt     time.Time
}

// PaymentGateway is the hex port for the external payment provider.
//
// ConfirmPayment is called inside an open ledger transaction; implementations
// must honor ctx deadlines so an ambiguous provider outcome rolls the whole
// transaction back (fail closed for credits).
type PaymentGateway interface {
	Name() string

	// ConfirmPayment charges/captures the given amount and returns the
	// provider payment intent id on success.
	ConfirmPayment(ctx context.Context, amount int64, meta map[string]string) (paymentIntentID string, err error)
	// CreateSubscription starts a recurring subscription for a provider customer.
	CreateSubscription(ctx context.Context, customerID, planType string) (subscriptionID string, err error)
	// CancelSubscription stops a recurring subscription.
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
