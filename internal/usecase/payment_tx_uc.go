// File: internal/usecase/payment_tx_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/adapter"
	"marketplace-credits/internal/domain/ports/repository"
	"marketplace-credits/internal/infra/metrics"
)

// Compile-time check
var _ PaymentTxUseCase = (*paymentTxUC)(nil)

// Locker serializes orchestrated payment transactions per user across
// instances. Implemented by the Redis locker.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// PaymentTxInput describes one add-credits-with-payment request.
type PaymentTxInput struct {
	UserID      string
	Amount      int64 // credits purchased
	Description string
	PromoCode   *string
	Price       *int64 // gateway charge when it differs from Amount
}

// PaymentTxResult reports the committed outcome.
type PaymentTxResult struct {
	Balance         *model.CreditBalance
	PaymentIntentID string
	FinalAmount     int64 // credits actually granted, including promo bonus
	PromoCode       *model.PromoCode
}

// PaymentTxUseCase is the transaction orchestrator: it composes promo-code
// redemption, the gateway payment confirmation and the ledger grant into one
// atomic business transaction. The gateway call runs inside the open database
// transaction under a bounded timeout, so a gateway failure or an ambiguous
// timeout rolls back the promo-code decrement along with everything else.
// Promo availability is a user-visible resource and must not leak on failure.
type PaymentTxUseCase interface {
	ExecutePaymentTransaction(ctx context.Context, in PaymentTxInput) (*PaymentTxResult, error)
	// ExecuteCreditsTransferTransaction runs a transfer inside the same
	// transactional envelope (isolation level) used for payment transactions.
	ExecuteCreditsTransferTransaction(ctx context.Context, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*TransferResult, error)
}

type paymentTxUC struct {
	credits        CreditsUseCase
	promos         PromoUseCase
	transfers      TransferUseCase
	gateway        adapter.PaymentGateway
	codes          repository.PromoCodeRepository
	tm             repository.TransactionManager
	locker         Locker
	cache          BalanceCacheInvalidator
	gatewayTimeout time.Duration
	log            *zerolog.Logger
}

// txOptions is the shared envelope for orchestrated transactions. Repeatable
// read keeps a transfer or payment from observing other writers' half-done
// state while it runs.
var txOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead}

func NewPaymentTxUseCase(
	credits CreditsUseCase,
	promos PromoUseCase,
	transfers TransferUseCase,
	gateway adapter.PaymentGateway,
	codes repository.PromoCodeRepository,
	tm repository.TransactionManager,
	locker Locker,
	cache BalanceCacheInvalidator,
	gatewayTimeout time.Duration,
	logger *zerolog.Logger,
) *paymentTxUC {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "PaymentTxUC").Logger()
	return &paymentTxUC{
		credits:        credits,
		promos:         promos,
		transfers:      transfers,
		gateway:        gateway,
		codes:          codes,
		tm:             tm,
		locker:         locker,
		cache:          cache,
		gatewayTimeout: gatewayTimeout,
		log:            &l,
	}
}

func (uc *paymentTxUC) ExecutePaymentTransaction(ctx context.Context, in PaymentTxInput) (*PaymentTxResult, error) {
	ve := domain.NewValidationError()
	if in.UserID == "" {
		ve.Add("userId", "must not be empty")
	}
	if in.Amount <= 0 {
		ve.Add("amount", "must be positive")
	}
	if in.Price != nil && *in.Price <= 0 {
		ve.Add("price", "must be positive")
	}
	validateDescription(ve, in.Description)
	if !ve.Empty() {
		return nil, ve
	}

	if uc.locker != nil {
		lockKey := "payment:user:" + in.UserID
		token, err := uc.locker.TryLock(ctx, lockKey, uc.gatewayTimeout+5*time.Second)
		if err != nil {
			return nil, domain.NewBusinessRuleError("another payment is in flight for user %s", in.UserID)
		}
		defer func() {
			if uerr := uc.locker.Unlock(ctx, lockKey, token); uerr != nil {
				uc.log.Warn().Err(uerr).Str("user_id", in.UserID).Msg("payment lock release failed")
			}
		}()
	}

	result := &PaymentTxResult{FinalAmount: in.Amount}
	started := time.Now()
	var confirmedIntent string
	err := uc.tm.WithTx(ctx, txOptions, func(ctx context.Context, tx repository.Tx) error {
		var usageID string
		if in.PromoCode != nil && *in.PromoCode != "" {
			use, err := uc.promos.UseTx(ctx, tx, *in.PromoCode, in.UserID, nil)
			if err != nil {
				return err
			}
			result.PromoCode = use.PromoCode
			result.FinalAmount = use.PromoCode.BonusFor(in.Amount)
			usageID = use.Usage.ID
		}

		charge := in.Amount
		if in.Price != nil {
			charge = *in.Price
		}

		// Bounded gateway call: an ambiguous outcome (timeout) aborts the
		// transaction, reverting the promo decrement above. Fail closed.
		gctx, cancel := context.WithTimeout(ctx, uc.gatewayTimeout)
		defer cancel()
		gatewayStart := time.Now()
		intentID, err := uc.gateway.ConfirmPayment(gctx, charge, map[string]string{
			"userId":      in.UserID,
			"description": in.Description,
		})
		metrics.ObserveGatewayLatency(uc.gateway.Name(), float64(time.Since(gatewayStart).Milliseconds()))
		if err != nil {
			metrics.IncGatewayCall(uc.gateway.Name(), "error")
			return fmt.Errorf("confirm payment for user %s: %w", in.UserID, err)
		}
		metrics.IncGatewayCall(uc.gateway.Name(), "success")
		confirmedIntent = intentID
		result.PaymentIntentID = intentID

		if usageID != "" {
			if err := uc.codes.SetUsageTransactionID(ctx, tx, usageID, intentID); err != nil {
				return err
			}
		}

		balance, err := uc.credits.AddCreditsTx(ctx, tx, in.UserID, result.FinalAmount, 0, in.Description)
		if err != nil {
			return err
		}
		result.Balance = balance
		return nil
	})
	if err != nil {
		// The customer was charged but the transaction rolled back; the
		// intent id is the only handle for out-of-band reconciliation.
		if confirmedIntent != "" {
			uc.log.Error().
				Err(err).
				Str("user_id", in.UserID).
				Str("gateway", uc.gateway.Name()).
				Str("payment_intent", confirmedIntent).
				Msg("payment confirmed but transaction rolled back, reconcile manually")
		}
		return nil, err
	}

	uc.invalidate(ctx, in.UserID)
	uc.log.Info().
		Str("user_id", in.UserID).
		Int64("amount", in.Amount).
		Int64("final_amount", result.FinalAmount).
		Str("payment_intent", result.PaymentIntentID).
		Dur("took", time.Since(started)).
		Msg("payment transaction committed")
	return result, nil
}

func (uc *paymentTxUC) ExecuteCreditsTransferTransaction(ctx context.Context, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*TransferResult, error) {
	var result *TransferResult
	err := uc.tm.WithTx(ctx, txOptions, func(ctx context.Context, tx repository.Tx) error {
		var err error
		result, err = uc.transfers.TransferTx(ctx, tx, fromUserID, toUserID, amount, description, actingRole)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, fromUserID)
	uc.invalidate(ctx, toUserID)
	return result, nil
}

func (uc *paymentTxUC) invalidate(ctx context.Context, userID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.InvalidateBalance(ctx, userID); err != nil {
		uc.log.Warn().Err(err).Str("user_id", userID).Msg("balance cache invalidation failed")
	}
}
