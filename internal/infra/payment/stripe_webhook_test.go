package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"marketplace-credits/internal/domain/ports/adapter"
)

func signPayload(secret string, payload []byte, ts int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"type":"invoice.paid"}`)
	now := time.Now().Unix()

	t.Run("accepts a valid signature", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,v1=%s", now, signPayload(secret, payload, now))
		if !VerifyStripeWebhookSignature(secret, payload, header, 5*time.Minute) {
			t.Error("a valid signature must be accepted")
		}
	})

	t.Run("accepts when one of several v1 signatures matches", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", now, signPayload(secret, payload, now))
		if !VerifyStripeWebhookSignature(secret, payload, header, 5*time.Minute) {
			t.Error("any matching v1 signature must be accepted")
		}
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,v1=%s", now, signPayload(secret, payload, now))
		if VerifyStripeWebhookSignature(secret, []byte(`{"type":"evil"}`), header, 5*time.Minute) {
			t.Error("a tampered payload must be rejected")
		}
	})

	t.Run("rejects the wrong secret", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,v1=%s", now, signPayload("whsec_other", payload, now))
		if VerifyStripeWebhookSignature(secret, payload, header, 5*time.Minute) {
			t.Error("a signature made with another secret must be rejected")
		}
	})

	t.Run("rejects a stale timestamp", func(t *testing.T) {
		old := time.Now().Add(-time.Hour).Unix()
		header := fmt.Sprintf("t=%d,v1=%s", old, signPayload(secret, payload, old))
		if VerifyStripeWebhookSignature(secret, payload, header, 5*time.Minute) {
			t.Error("a replayed signature outside the tolerance must be rejected")
		}
	})

	t.Run("rejects malformed headers", func(t *testing.T) {
		for _, header := range []string{"", "t=abc,v1=00", "v1=00", fmt.Sprintf("t=%d", now)} {
			if VerifyStripeWebhookSignature(secret, payload, header, 5*time.Minute) {
				t.Errorf("malformed header %q must be rejected", header)
			}
		}
	})
}

func TestParseSubscriptionEvent(t *testing.T) {
	t.Run("maps a paid invoice", func(t *testing.T) {
		payload := []byte(`{
			"type": "invoice.paid",
			"created": 1700000000,
			"data": {"object": {"id": "in_1", "customer": "cus_123", "subscription": "sub_9"}}
		}`)
		ev, err := ParseSubscriptionEvent(payload)
		if err != nil {
			t.Fatalf("ParseSubscriptionEvent failed: %v", err)
		}
		if ev.Type != adapter.EventInvoicePaid || ev.CustomerID != "cus_123" || ev.SubscriptionID != "sub_9" {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.OccurredAt.Unix() != 1700000000 {
			t.Errorf("unexpected timestamp: %v", ev.OccurredAt)
		}
	})

	t.Run("maps a subscription update with its plan", func(t *testing.T) {
		payload := []byte(`{
			"type": "customer.subscription.updated",
			"created": 1700000000,
			"data": {"object": {"id": "sub_9", "customer": "cus_123", "plan": {"nickname": "pro"}}}
		}`)
		ev, err := ParseSubscriptionEvent(payload)
		if err != nil {
			t.Fatalf("ParseSubscriptionEvent failed: %v", err)
		}
		if ev.Type != adapter.EventSubscriptionUpdated || ev.SubscriptionID != "sub_9" || ev.PlanType != "pro" {
			t.Errorf("unexpected event: %+v", ev)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		if _, err := ParseSubscriptionEvent([]byte("{")); err == nil {
			t.Error("malformed JSON must fail")
		}
	})
}
