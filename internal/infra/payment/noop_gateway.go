package payment

import (
	"context"
	"fmt"
	"sync/atomic"

	"marketplace-credits/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway approves every payment without calling any provider. Used in
// local development and end-to-end setups where no Stripe key is configured.
type NoopGateway struct {
	seq atomic.Int64
}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) ConfirmPayment(ctx context.Context, amount int64, meta map[string]string) (string, error) {
	return fmt.Sprintf("pi_noop_%d", g.seq.Add(1)), nil
}

func (g *NoopGateway) CreateSubscription(ctx context.Context, customerID, planType string) (string, error) {
	return fmt.Sprintf("sub_noop_%d", g.seq.Add(1)), nil
}

func (g *NoopGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}
