package web

import (
	"context"
	"net/http"
	"time"

	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server exposes the ledger API: credit balances, transfers, promo codes,
// payment transactions, memberships and the provider webhook.
type Server struct {
	creditsUC    usecase.CreditsUseCase
	transferUC   usecase.TransferUseCase
	promoUC      usecase.PromoUseCase
	paymentTxUC  usecase.PaymentTxUseCase
	membershipUC usecase.MembershipUseCase

	auth             *AuthManager
	webhookSecret    string
	webhookTolerance time.Duration
	log              *zerolog.Logger
}

func NewServer(
	creditsUC usecase.CreditsUseCase,
	transferUC usecase.TransferUseCase,
	promoUC usecase.PromoUseCase,
	paymentTxUC usecase.PaymentTxUseCase,
	membershipUC usecase.MembershipUseCase,
	auth *AuthManager,
	webhookSecret string,
	webhookTolerance time.Duration,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		creditsUC:        creditsUC,
		transferUC:       transferUC,
		promoUC:          promoUC,
		paymentTxUC:      paymentTxUC,
		membershipUC:     membershipUC,
		auth:             auth,
		webhookSecret:    webhookSecret,
		webhookTolerance: webhookTolerance,
		log:              &l,
	}
}

// RegisterRoutes mounts the full API onto the router. The webhook and health
// endpoints stay outside the session middleware: the webhook authenticates
// with its own signature scheme.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.healthHandler)
	r.Post("/webhook/stripe", s.stripeWebhookHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Route("/credits", func(r chi.Router) {
			r.Post("/", s.createBalanceHandler)
			r.Get("/{userID}", s.getBalanceHandler)
			r.With(s.requireRole(model.RoleAdmin)).Put("/{userID}", s.updateBalanceHandler)
			r.With(s.requireRole(model.RoleAdmin)).Delete("/{userID}", s.deleteBalanceHandler)
			r.With(s.requireRole(model.RoleAdmin)).Post("/{userID}/add", s.addCreditsHandler)
			r.Post("/{userID}/consume", s.consumeHandler)
			r.Post("/{userID}/consume-priority", s.consumePriorityHandler)
			r.Get("/{userID}/history", s.historyHandler)
		})

		r.Post("/transfers", s.transferHandler)
		r.Post("/payments", s.paymentHandler)

		r.Route("/promo-codes", func(r chi.Router) {
			r.With(s.requireRole(model.RoleAdmin)).Post("/", s.promoCreateHandler)
			r.With(s.requireRole(model.RoleAdmin)).Patch("/{code}", s.promoUpdateHandler)
			r.With(s.requireRole(model.RoleAdmin)).Post("/{code}/cancel", s.promoCancelHandler)
			r.With(s.requireRole(model.RoleAdmin)).Delete("/{code}", s.promoDeleteHandler)
			r.Post("/validate", s.promoValidateHandler)
			r.Post("/use", s.promoUseHandler)
			r.Post("/use-legacy", s.promoUseLegacyHandler)
		})

		r.Route("/memberships", func(r chi.Router) {
			r.Post("/", s.membershipLinkHandler)
			r.Get("/{userID}", s.membershipGetHandler)
			r.Post("/{userID}/subscribe", s.membershipSubscribeHandler)
			r.Post("/{userID}/cancel", s.membershipCancelHandler)
		})
	})
}

type ctxClaimsKey struct{}

// sessionMiddleware authenticates the request via JWT (Bearer header or
// session cookie) and stores the claims for handlers downstream.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a route to sessions carrying the given role.
func (s *Server) requireRole(role model.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r.Context())
			if claims == nil || claims.ActingRole() != role {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func claimsFrom(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(ctxClaimsKey{}).(*SessionClaims)
	return claims
}
