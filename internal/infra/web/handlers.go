package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/infra/payment"
	"marketplace-credits/internal/usecase"

	"github.com/go-chi/chi/v5"
)

// ===== response shapes =====

type balanceResponse struct {
	UserID       string    `json:"user_id"`
	AmountDemand int64     `json:"amount_demand"`
	AmountSub    int64     `json:"amount_sub"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toBalanceResponse(b *model.CreditBalance) balanceResponse {
	return balanceResponse{
		UserID:       b.UserID,
		AmountDemand: b.AmountDemand,
		AmountSub:    b.AmountSub,
		UpdatedAt:    b.UpdatedAt,
	}
}

type historyEntryResponse struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Operation   string    `json:"operation"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}

type promoCodeResponse struct {
	Code            string     `json:"code"`
	Discount        int        `json:"discount"`
	AllowedTimes    int        `json:"allowed_times"`
	AmountAvailable int        `json:"amount_available"`
	ExpirationDate  time.Time  `json:"expiration_date"`
	Active          bool       `json:"active"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

func toPromoCodeResponse(p *model.PromoCode) promoCodeResponse {
	return promoCodeResponse{
		Code:            p.Code,
		Discount:        p.Discount,
		AllowedTimes:    p.AllowedTimes,
		AmountAvailable: p.AmountAvailable,
		ExpirationDate:  p.ExpirationDate,
		Active:          p.Active,
		CancelledAt:     p.CancelledAt,
	}
}

type membershipResponse struct {
	UserID               string     `json:"user_id"`
	StripeCustomerID     string     `json:"stripe_customer_id"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id,omitempty"`
	SubscriptionStatus   string     `json:"subscription_status"`
	PlanType             string     `json:"plan_type"`
	LastPaymentDate      *time.Time `json:"last_payment_date,omitempty"`
}

func toMembershipResponse(m *model.Membership) membershipResponse {
	return membershipResponse{
		UserID:               m.UserID,
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		SubscriptionStatus:   string(m.SubscriptionStatus),
		PlanType:             m.PlanType,
		LastPaymentDate:      m.LastPaymentDate,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. The legacy promo error
// strings are part of the client contract and pass through verbatim.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPromoCodeNotFoundLegacy),
		errors.Is(err, domain.ErrPromoCodeUnavailableLegacy):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case domain.IsValidation(err):
		var ve *domain.ValidationError
		errors.As(err, &ve)
		writeJSON(w, http.StatusBadRequest, struct {
			Error  string              `json:"error"`
			Fields map[string][]string `json:"fields"`
		}{Error: "validation failed", Fields: ve.Fields})
	case domain.IsBusinessRule(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, "already exists", http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// ===== health =====

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// ===== credits =====

type balanceCreateRequest struct {
	UserID       string `json:"user_id"`
	AmountDemand int64  `json:"amount_demand"`
	AmountSub    int64  `json:"amount_sub"`
}

func (s *Server) createBalanceHandler(w http.ResponseWriter, r *http.Request) {
	var req balanceCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	balance, err := s.creditsUC.CreateBalance(r.Context(), req.UserID, req.AmountDemand, req.AmountSub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBalanceResponse(balance))
}

func (s *Server) getBalanceHandler(w http.ResponseWriter, r *http.Request) {
	balance, err := s.creditsUC.GetBalance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

type balanceUpdateRequest struct {
	AmountDemand int64  `json:"amount_demand"`
	AmountSub    int64  `json:"amount_sub"`
	Description  string `json:"description"`
}

func (s *Server) updateBalanceHandler(w http.ResponseWriter, r *http.Request) {
	var req balanceUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	balance, err := s.creditsUC.UpdateBalance(r.Context(), chi.URLParam(r, "userID"), req.AmountDemand, req.AmountSub, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (s *Server) deleteBalanceHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.creditsUC.DeleteBalance(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type creditsAmountRequest struct {
	AmountDemand int64  `json:"amount_demand"`
	AmountSub    int64  `json:"amount_sub"`
	Description  string `json:"description"`
}

func (s *Server) addCreditsHandler(w http.ResponseWriter, r *http.Request) {
	var req creditsAmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	balance, err := s.creditsUC.AddCredits(r.Context(), chi.URLParam(r, "userID"), req.AmountDemand, req.AmountSub, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (s *Server) consumeHandler(w http.ResponseWriter, r *http.Request) {
	var req creditsAmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	balance, err := s.creditsUC.Consume(r.Context(), chi.URLParam(r, "userID"), req.AmountDemand, req.AmountSub, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

type consumePriorityRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (s *Server) consumePriorityHandler(w http.ResponseWriter, r *http.Request) {
	var req consumePriorityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	balance, err := s.creditsUC.ConsumeWithPriority(r.Context(), chi.URLParam(r, "userID"), req.Amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, limit = usecase.ClampHistoryPage(offset, limit)

	entries, total, err := s.creditsUC.GetHistory(r.Context(), chi.URLParam(r, "userID"), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyEntryResponse{
			ID:          e.ID,
			Amount:      e.Amount,
			Description: e.Description,
			Operation:   string(e.Operation),
			Type:        string(e.Type),
			CreatedAt:   e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Data   []historyEntryResponse `json:"data"`
		Total  int64                  `json:"total"`
		Limit  int                    `json:"limit"`
		Offset int                    `json:"offset"`
	}{Data: items, Total: total, Limit: limit, Offset: offset})
}

// ===== transfers =====

type transferRequest struct {
	FromUserID  string `json:"from_user_id"`
	ToUserID    string `json:"to_user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (s *Server) transferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())
	result, err := s.paymentTxUC.ExecuteCreditsTransferTransaction(
		r.Context(), req.FromUserID, req.ToUserID, req.Amount, req.Description, claims.ActingRole())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		From balanceResponse `json:"from"`
		To   balanceResponse `json:"to"`
	}{From: toBalanceResponse(result.From), To: toBalanceResponse(result.To)})
}

// ===== payments =====

type paymentRequest struct {
	UserID      string  `json:"user_id"`
	Amount      int64   `json:"amount"`
	Description string  `json:"description"`
	PromoCode   *string `json:"promo_code,omitempty"`
	Price       *int64  `json:"price,omitempty"`
}

func (s *Server) paymentHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.paymentTxUC.ExecutePaymentTransaction(r.Context(), usecase.PaymentTxInput{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Description: req.Description,
		PromoCode:   req.PromoCode,
		Price:       req.Price,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := struct {
		Balance         balanceResponse    `json:"balance"`
		PaymentIntentID string             `json:"payment_intent_id"`
		FinalAmount     int64              `json:"final_amount"`
		PromoCode       *promoCodeResponse `json:"promo_code,omitempty"`
	}{
		Balance:         toBalanceResponse(result.Balance),
		PaymentIntentID: result.PaymentIntentID,
		FinalAmount:     result.FinalAmount,
	}
	if result.PromoCode != nil {
		pc := toPromoCodeResponse(result.PromoCode)
		resp.PromoCode = &pc
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ===== promo codes =====

type promoCreateRequest struct {
	Code            string    `json:"code"`
	Discount        int       `json:"discount"`
	AllowedTimes    int       `json:"allowed_times"`
	AmountAvailable *int      `json:"amount_available,omitempty"`
	ExpirationDate  time.Time `json:"expiration_date"`
}

func (s *Server) promoCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req promoCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())
	promo, err := s.promoUC.Create(r.Context(), usecase.PromoCodeInput{
		Code:            req.Code,
		Discount:        req.Discount,
		AllowedTimes:    req.AllowedTimes,
		AmountAvailable: req.AmountAvailable,
		ExpirationDate:  req.ExpirationDate,
		CreatedBy:       claims.Subject,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromoCodeResponse(promo))
}

type promoUpdateRequest struct {
	Discount       *int       `json:"discount,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Active         *bool      `json:"active,omitempty"`
}

func (s *Server) promoUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req promoUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	promo, err := s.promoUC.Update(r.Context(), chi.URLParam(r, "code"), req.Discount, req.ExpirationDate, req.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromoCodeResponse(promo))
}

func (s *Server) promoCancelHandler(w http.ResponseWriter, r *http.Request) {
	promo, err := s.promoUC.Cancel(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromoCodeResponse(promo))
}

func (s *Server) promoDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.promoUC.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type promoValidateRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

func (s *Server) promoValidateHandler(w http.ResponseWriter, r *http.Request) {
	var req promoValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	validation, err := s.promoUC.ValidateForUser(r.Context(), req.Code, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason,omitempty"`
	}{Valid: validation.Valid, Reason: validation.Reason})
}

type promoUseRequest struct {
	Code          string  `json:"code"`
	UserID        string  `json:"user_id"`
	TransactionID *string `json:"transaction_id,omitempty"`
}

func (s *Server) promoUseHandler(w http.ResponseWriter, r *http.Request) {
	var req promoUseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.promoUC.Use(r.Context(), req.Code, req.UserID, req.TransactionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromoCodeResponse(result.PromoCode))
}

type promoUseLegacyRequest struct {
	Code string `json:"code"`
}

func (s *Server) promoUseLegacyHandler(w http.ResponseWriter, r *http.Request) {
	var req promoUseLegacyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())
	promo, err := s.promoUC.UseLegacy(r.Context(), req.Code, claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromoCodeResponse(promo))
}

// ===== memberships =====

type membershipLinkRequest struct {
	UserID           string `json:"user_id"`
	StripeCustomerID string `json:"stripe_customer_id"`
	PlanType         string `json:"plan_type"`
}

func (s *Server) membershipLinkHandler(w http.ResponseWriter, r *http.Request) {
	var req membershipLinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	membership, err := s.membershipUC.LinkCustomer(r.Context(), req.UserID, req.StripeCustomerID, req.PlanType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipResponse(membership))
}

func (s *Server) membershipGetHandler(w http.ResponseWriter, r *http.Request) {
	membership, err := s.membershipUC.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(membership))
}

func (s *Server) membershipSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	membership, err := s.membershipUC.StartSubscription(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(membership))
}

func (s *Server) membershipCancelHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.membershipUC.CancelMembership(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== provider webhook =====

// stripeWebhookHandler verifies the event signature, maps the payload onto
// the provider-agnostic event and applies it. Unknown customers answer 200 so
// the provider stops retrying; transient failures answer 500 so it retries.
func (s *Server) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if !payment.VerifyStripeWebhookSignature(s.webhookSecret, body, sig, s.webhookTolerance) {
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	event, err := payment.ParseSubscriptionEvent(body)
	if err != nil {
		http.Error(w, "Invalid event payload", http.StatusBadRequest)
		return
	}

	if err := s.membershipUC.HandleSubscriptionEvent(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Str("customer_id", event.CustomerID).Str("type", string(event.Type)).Msg("webhook for unknown customer ignored")
			w.WriteHeader(http.StatusOK)
			return
		}
		s.log.Error().Err(err).Str("type", string(event.Type)).Msg("webhook processing failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
