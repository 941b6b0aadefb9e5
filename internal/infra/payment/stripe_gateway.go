package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"marketplace-credits/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeDirectGateway)(nil)

// StripeDirectGateway implements the PaymentGateway port using direct HTTP
// calls against the Stripe REST API.
type StripeDirectGateway struct {
	apiKey     string
	currency   string
	planPrices map[string]string // planType -> Stripe price id
	baseURL    string
	client     *http.Client
}

// NewStripeDirectGateway creates a new direct Stripe gateway.
func NewStripeDirectGateway(apiKey, currency string, planPrices map[string]string) *StripeDirectGateway {
	if currency == "" {
		currency = "usd"
	}
	return &StripeDirectGateway{
		apiKey:     apiKey,
		currency:   currency,
		planPrices: planPrices,
		baseURL:    "https://api.stripe.com/v1",
		client:     &http.Client{},
	}
}

func (g *StripeDirectGateway) Name() string { return "stripe" }

// stripePaymentIntent is the subset of the PaymentIntent object we read.
type stripePaymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// stripeSubscription is the subset of the Subscription object we read.
type stripeSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ConfirmPayment creates and immediately confirms a PaymentIntent. Amounts
// are in the smallest currency unit.
func (g *StripeDirectGateway) ConfirmPayment(ctx context.Context, amount int64, meta map[string]string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", g.currency)
	form.Set("confirm", "true")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	for k, v := range meta {
		form.Set("metadata["+k+"]", v)
	}

	var intent stripePaymentIntent
	if err := g.post(ctx, "/payment_intents", form, &intent); err != nil {
		return "", err
	}
	if intent.Error != nil {
		return "", fmt.Errorf("stripe error: %s: %s", intent.Error.Code, intent.Error.Message)
	}
	if intent.Status != "succeeded" {
		return "", fmt.Errorf("stripe payment intent %s not succeeded: status %q", intent.ID, intent.Status)
	}
	return intent.ID, nil
}

// CreateSubscription starts a recurring subscription for the customer on the
// price configured for planType.
func (g *StripeDirectGateway) CreateSubscription(ctx context.Context, customerID, planType string) (string, error) {
	priceID, ok := g.planPrices[planType]
	if !ok {
		return "", fmt.Errorf("no stripe price configured for plan %q", planType)
	}

	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("items[0][price]", priceID)

	var sub stripeSubscription
	if err := g.post(ctx, "/subscriptions", form, &sub); err != nil {
		return "", err
	}
	if sub.Error != nil {
		return "", fmt.Errorf("stripe error: %s", sub.Error.Message)
	}
	return sub.ID, nil
}

// CancelSubscription stops the subscription immediately.
func (g *StripeDirectGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/subscriptions/"+subscriptionID, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stripe cancel failed: status %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (g *StripeDirectGateway) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("stripe request to %s failed: status %d, body: %s", path, resp.StatusCode, string(body))
	}
	return nil
}
