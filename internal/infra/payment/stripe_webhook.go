package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketplace-credits/internal/domain/ports/adapter"
)

// VerifyStripeWebhookSignature checks a Stripe-Signature header against the
// endpoint secret. The header carries a timestamp and one or more v1
// signatures: HMAC-SHA256 over "<timestamp>.<payload>".
func VerifyStripeWebhookSignature(secret string, payload []byte, header string, tolerance time.Duration) bool {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if tolerance > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return false
		}
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp))
	h.Write([]byte("."))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}

// stripeEvent is the envelope shape shared by the events we consume.
type stripeEvent struct {
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID       string `json:"id"`
			Customer string `json:"customer"`
			// Subscription is set on invoice objects.
			Subscription string `json:"subscription"`
			// Plan nickname carried on subscription objects.
			Plan struct {
				Nickname string `json:"nickname"`
			} `json:"plan"`
		} `json:"object"`
	} `json:"data"`
}

// ParseSubscriptionEvent maps a raw Stripe event payload onto the
// provider-agnostic SubscriptionEvent consumed by the membership use case.
func ParseSubscriptionEvent(payload []byte) (adapter.SubscriptionEvent, error) {
	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return adapter.SubscriptionEvent{}, fmt.Errorf("failed to unmarshal stripe event: %w", err)
	}

	out := adapter.SubscriptionEvent{
		Type:       adapter.SubscriptionEventType(ev.Type),
		CustomerID: ev.Data.Object.Customer,
		PlanType:   ev.Data.Object.Plan.Nickname,
		OccurredAt: time.Unix(ev.Created, 0),
	}
	switch out.Type {
	case adapter.EventSubscriptionCreated, adapter.EventSubscriptionUpdated, adapter.EventSubscriptionDeleted:
		out.SubscriptionID = ev.Data.Object.ID
	case adapter.EventInvoicePaid, adapter.EventInvoiceFailed:
		out.SubscriptionID = ev.Data.Object.Subscription
	}
	return out, nil
}
