// File: internal/usecase/credits_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
	"marketplace-credits/internal/infra/metrics"
)

// Compile-time check
var _ CreditsUseCase = (*creditsUC)(nil)

// BalanceCacheInvalidator drops cached balance entries after a mutation.
// Invalidation is best-effort: failures are logged, never fatal.
type BalanceCacheInvalidator interface {
	InvalidateBalance(ctx context.Context, userID string) error
}

// CreditsUseCase exposes the ledger's balance operations: reads, grants and
// the two consumption modes.
type CreditsUseCase interface {
	// GetBalance returns the user's balance. ErrNotFound if none exists.
	GetBalance(ctx context.Context, userID string) (*model.CreditBalance, error)
	// GetHistory returns the user's history entries, newest first.
	GetHistory(ctx context.Context, userID string, offset, limit int) ([]*model.CreditHistoryEntry, int64, error)
	// CreateBalance creates an empty (or pre-filled) balance row.
	CreateBalance(ctx context.Context, userID string, amountDemand, amountSub int64) (*model.CreditBalance, error)
	// UpdateBalance sets both buckets to absolute values (admin operation).
	UpdateBalance(ctx context.Context, userID string, amountDemand, amountSub int64, description string) (*model.CreditBalance, error)
	// DeleteBalance soft-deletes the balance row.
	DeleteBalance(ctx context.Context, userID string) error
	// AddCredits grants credits to one or both buckets, creating the balance
	// on first grant.
	AddCredits(ctx context.Context, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error)
	// Consume deducts explicit per-bucket amounts, all-or-nothing per bucket.
	Consume(ctx context.Context, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error)
	// ConsumeWithPriority deducts totalAmount using the subscription-first
	// policy: the sub bucket is drained before the demand bucket is touched.
	ConsumeWithPriority(ctx context.Context, userID string, totalAmount int64, description string) (*model.CreditBalance, error)
	// AddCreditsTx is the in-transaction grant primitive used by the payment
	// orchestrator; it must run with a live tx handle.
	AddCreditsTx(ctx context.Context, tx repository.Tx, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error)
}

type creditsUC struct {
	balances repository.CreditBalanceRepository
	history  repository.CreditHistoryRepository
	tm       repository.TransactionManager
	cache    BalanceCacheInvalidator
	log      *zerolog.Logger
}

func NewCreditsUseCase(
	balances repository.CreditBalanceRepository,
	history repository.CreditHistoryRepository,
	tm repository.TransactionManager,
	cache BalanceCacheInvalidator,
	logger *zerolog.Logger,
) *creditsUC {
	l := logger.With().Str("component", "CreditsUC").Logger()
	return &creditsUC{balances: balances, history: history, tm: tm, cache: cache, log: &l}
}

// validateDescription enforces the 1-255 character contract shared by every
// mutating operation.
func validateDescription(ve *domain.ValidationError, description string) {
	if description == "" {
		ve.Add("description", "must not be empty")
	}
	if len(description) > 255 {
		ve.Add("description", "must be at most 255 characters")
	}
}

func (uc *creditsUC) GetBalance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	if userID == "" {
		return nil, NewValidationFailure("userId", "must not be empty")
	}
	return uc.balances.FindByUserID(ctx, repository.NoTX, userID)
}

// History pagination bounds, shared with the API layer so the echoed page
// parameters always match what was actually queried.
const (
	HistoryDefaultLimit = 50
	HistoryMaxLimit     = 100
)

// ClampHistoryPage normalizes pagination inputs: offset floors at zero,
// limit defaults to HistoryDefaultLimit and caps at HistoryMaxLimit.
func ClampHistoryPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = HistoryDefaultLimit
	}
	if limit > HistoryMaxLimit {
		limit = HistoryMaxLimit
	}
	return offset, limit
}

func (uc *creditsUC) GetHistory(ctx context.Context, userID string, offset, limit int) ([]*model.CreditHistoryEntry, int64, error) {
	if userID == "" {
		return nil, 0, NewValidationFailure("userId", "must not be empty")
	}
	offset, limit = ClampHistoryPage(offset, limit)
	return uc.history.ListByUserID(ctx, repository.NoTX, userID, offset, limit)
}

func (uc *creditsUC) CreateBalance(ctx context.Context, userID string, amountDemand, amountSub int64) (*model.CreditBalance, error) {
	ve := domain.NewValidationError()
	if userID == "" {
		ve.Add("userId", "must not be empty")
	}
	if amountDemand < 0 {
		ve.Add("amountDemand", "must be non-negative")
	}
	if amountSub < 0 {
		ve.Add("amountSub", "must be non-negative")
	}
	if !ve.Empty() {
		return nil, ve
	}

	var created *model.CreditBalance
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		existing, err := uc.balances.FindByUserID(ctx, tx, userID)
		if err != nil && err != domain.ErrNotFound {
			return err
		}
		if existing != nil {
			return domain.NewBusinessRuleError("balance already exists for user %s", userID)
		}
		// The row starts empty; initial amounts are applied as a grant so
		// the audit trail covers them like any other mutation.
		created, err = model.NewCreditBalance("", userID, 0, 0)
		if err != nil {
			return err
		}
		if err := uc.balances.Create(ctx, tx, created); err != nil {
			return err
		}
		if amountDemand > 0 || amountSub > 0 {
			return uc.applyDelta(ctx, tx, created, amountDemand, amountSub, "initial balance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, userID)
	return created, nil
}

func (uc *creditsUC) UpdateBalance(ctx context.Context, userID string, amountDemand, amountSub int64, description string) (*model.CreditBalance, error) {
	ve := domain.NewValidationError()
	if userID == "" {
		ve.Add("userId", "must not be empty")
	}
	if amountDemand < 0 {
		ve.Add("amountDemand", "must be non-negative")
	}
	if amountSub < 0 {
		ve.Add("amountSub", "must be non-negative")
	}
	validateDescription(ve, description)
	if !ve.Empty() {
		return nil, ve
	}

	var updated *model.CreditBalance
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		balance, err := uc.balances.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := uc.applyDelta(ctx, tx, balance, amountDemand-balance.AmountDemand, amountSub-balance.AmountSub, description); err != nil {
			return err
		}
		updated = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, userID)
	return updated, nil
}

func (uc *creditsUC) DeleteBalance(ctx context.Context, userID string) error {
	if userID == "" {
		return NewValidationFailure("userId", "must not be empty")
	}
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := uc.balances.FindByUserID(ctx, tx, userID); err != nil {
			return err
		}
		return uc.balances.SoftDelete(ctx, tx, userID)
	})
	if err != nil {
		return err
	}
	uc.invalidate(ctx, userID)
	return nil
}

func (uc *creditsUC) AddCredits(ctx context.Context, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error) {
	var updated *model.CreditBalance
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		updated, err = uc.AddCreditsTx(ctx, tx, userID, demandAmount, subAmount, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, userID)
	return updated, nil
}

// AddCreditsTx grants credits inside an already-open transaction. The balance
// row is created on first grant.
func (uc *creditsUC) AddCreditsTx(ctx context.Context, tx repository.Tx, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error) {
	ve := domain.NewValidationError()
	if userID == "" {
		ve.Add("userId", "must not be empty")
	}
	if demandAmount < 0 {
		ve.Add("demandAmount", "must be non-negative")
	}
	if subAmount < 0 {
		ve.Add("subAmount", "must be non-negative")
	}
	if demandAmount == 0 && subAmount == 0 {
		ve.Add("amount", "at least one bucket amount must be positive")
	}
	validateDescription(ve, description)
	if !ve.Empty() {
		return nil, ve
	}

	balance, err := uc.balances.FindByUserID(ctx, tx, userID)
	if err == domain.ErrNotFound {
		balance, err = model.NewCreditBalance("", userID, 0, 0)
		if err != nil {
			return nil, err
		}
		if err := uc.balances.Create(ctx, tx, balance); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := uc.applyDelta(ctx, tx, balance, demandAmount, subAmount, description); err != nil {
		return nil, err
	}
	metrics.AddCreditsGranted(model.CreditTypeDemand, demandAmount)
	metrics.AddCreditsGranted(model.CreditTypeSub, subAmount)
	return balance, nil
}

func (uc *creditsUC) Consume(ctx context.Context, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error) {
	ve := domain.NewValidationError()
	if userID == "" {
		ve.Add("userId", "must not be empty")
	}
	if demandAmount < 0 {
		ve.Add("demandAmount", "must be non-negative")
	}
	if subAmount < 0 {
		ve.Add("subAmount", "must be non-negative")
	}
	if demandAmount == 0 && subAmount == 0 {
		ve.Add("amount", "at least one bucket amount must be positive")
	}
	validateDescription(ve, description)
	if !ve.Empty() {
		return nil, ve
	}

	var updated *model.CreditBalance
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		balance, err := uc.balances.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		// All-or-nothing per bucket: both sufficiency checks run before any
		// mutation so a sub-bucket shortfall cannot leave a demand deduction
		// behind.
		if balance.AmountDemand < demandAmount {
			return domain.NewBusinessRuleError(
				"insufficient demand credits: requested %d, available %d", demandAmount, balance.AmountDemand)
		}
		if balance.AmountSub < subAmount {
			return domain.NewBusinessRuleError(
				"insufficient subscription credits: requested %d, available %d", subAmount, balance.AmountSub)
		}
		if err := uc.applyDelta(ctx, tx, balance, -demandAmount, -subAmount, description); err != nil {
			return err
		}
		updated = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.AddCreditsConsumed(model.CreditTypeDemand, demandAmount)
	metrics.AddCreditsConsumed(model.CreditTypeSub, subAmount)
	uc.invalidate(ctx, userID)
	return updated, nil
}

func (uc *creditsUC) ConsumeWithPriority(ctx context.Context, userID string, totalAmount int64, description string) (*model.CreditBalance, error) {
	ve := domain.NewValidationError()
	if userID == "" {
		ve.Add("userId", "must not be empty")
	}
	if totalAmount <= 0 {
		ve.Add("totalAmount", "must be positive")
	}
	validateDescription(ve, description)
	if !ve.Empty() {
		return nil, ve
	}

	var updated *model.CreditBalance
	var fromSub, fromDemand int64
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		balance, err := uc.balances.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if balance.Total() < totalAmount {
			return domain.NewBusinessRuleError(
				"insufficient credits: requested %d, available %d", totalAmount, balance.Total())
		}
		// Subscription credits are the plan-granted pool; drain them first so
		// purchased demand credits are kept. When totalAmount == AmountSub the
		// demand bucket is untouched.
		fromSub = totalAmount
		if fromSub > balance.AmountSub {
			fromSub = balance.AmountSub
		}
		fromDemand = totalAmount - fromSub
		if err := uc.applyDelta(ctx, tx, balance, -fromDemand, -fromSub, description); err != nil {
			return err
		}
		updated = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.AddCreditsConsumed(model.CreditTypeDemand, fromDemand)
	metrics.AddCreditsConsumed(model.CreditTypeSub, fromSub)
	uc.invalidate(ctx, userID)
	return updated, nil
}

// applyDelta mutates both buckets and appends exactly one history entry per
// bucket touched. Callers must hold the row lock (live tx) and have verified
// sufficiency; the non-negativity check here is the last line of defense for
// the ledger invariant.
func (uc *creditsUC) applyDelta(ctx context.Context, tx repository.Tx, balance *model.CreditBalance, demandDelta, subDelta int64, description string) error {
	if balance.AmountDemand+demandDelta < 0 || balance.AmountSub+subDelta < 0 {
		return domain.NewBusinessRuleError("operation would drive a credit bucket negative")
	}
	balance.AmountDemand += demandDelta
	balance.AmountSub += subDelta
	if err := uc.balances.Save(ctx, tx, balance); err != nil {
		return fmt.Errorf("save balance for user %s: %w", balance.UserID, err)
	}
	if demandDelta != 0 {
		entry := model.NewCreditHistoryEntry(balance.UserID, balance.ID, abs(demandDelta), description, operationFor(demandDelta), model.CreditTypeDemand)
		if err := uc.history.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("append demand history for user %s: %w", balance.UserID, err)
		}
	}
	if subDelta != 0 {
		entry := model.NewCreditHistoryEntry(balance.UserID, balance.ID, abs(subDelta), description, operationFor(subDelta), model.CreditTypeSub)
		if err := uc.history.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("append sub history for user %s: %w", balance.UserID, err)
		}
	}
	return nil
}

func (uc *creditsUC) invalidate(ctx context.Context, userID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.InvalidateBalance(ctx, userID); err != nil {
		uc.log.Warn().Err(err).Str("user_id", userID).Msg("balance cache invalidation failed")
	}
}

func operationFor(delta int64) model.HistoryOperation {
	if delta < 0 {
		return model.OperationDecrease
	}
	return model.OperationIncrease
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// NewValidationFailure builds a single-field ValidationError.
func NewValidationFailure(field, reason string) *domain.ValidationError {
	return domain.NewValidationError().Add(field, reason)
}
