// File: internal/usecase/transfer_uc.go
package usecase

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
	"marketplace-credits/internal/infra/metrics"
)

// Compile-time check
var _ TransferUseCase = (*transferUC)(nil)

// TransferResult carries both updated balances of a completed transfer.
type TransferResult struct {
	From *model.CreditBalance
	To   *model.CreditBalance
}

// TransferUseCase moves credits between two users atomically.
//
// The role policy lives here, not in the HTTP layer: the per-role transfer
// cap is a ledger invariant, and the acting role is always passed explicitly.
type TransferUseCase interface {
	Transfer(ctx context.Context, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*TransferResult, error)
	// TransferTx runs the same move inside an already-open transaction; used
	// by the payment orchestrator so transfers share its isolation envelope.
	TransferTx(ctx context.Context, tx repository.Tx, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*TransferResult, error)
}

type transferUC struct {
	balances repository.CreditBalanceRepository
	history  repository.CreditHistoryRepository
	tm       repository.TransactionManager
	cache    BalanceCacheInvalidator
	log      *zerolog.Logger
}

func NewTransferUseCase(
	balances repository.CreditBalanceRepository,
	history repository.CreditHistoryRepository,
	tm repository.TransactionManager,
	cache BalanceCacheInvalidator,
	logger *zerolog.Logger,
) *transferUC {
	l := logger.With().Str("component", "TransferUC").Logger()
	return &transferUC{balances: balances, history: history, tm: tm, cache: cache, log: &l}
}

func (uc *transferUC) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*TransferResult, error) {
	var result *TransferResult
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		result, err = uc.TransferTx(ctx, tx, fromUserID, toUserID, amount, description, actingRole)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, fromUserID)
	uc.invalidate(ctx, toUserID)
	metrics.IncTransfer(string(actingRole), "success")
	return result, nil
}

func (uc *transferUC) TransferTx(ctx context.Context, tx repository.Tx, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*TransferResult, error) {
	ve := domain.NewValidationError()
	if fromUserID == "" {
		ve.Add("fromUserId", "must not be empty")
	}
	if toUserID == "" {
		ve.Add("toUserId", "must not be empty")
	}
	if fromUserID != "" && fromUserID == toUserID {
		ve.Add("toUserId", "must differ from fromUserId")
	}
	if amount <= 0 {
		ve.Add("amount", "must be positive")
	}
	validateDescription(ve, description)
	if !ve.Empty() {
		metrics.IncTransfer(string(actingRole), "rejected")
		return nil, ve
	}

	// Policy checks run before any row is touched.
	limit, allowed := model.TransferLimit(actingRole)
	if !allowed {
		metrics.IncTransfer(string(actingRole), "rejected")
		return nil, domain.NewBusinessRuleError("role %s may not transfer credits", actingRole)
	}
	if limit > 0 && amount > limit {
		metrics.IncTransfer(string(actingRole), "rejected")
		return nil, domain.NewBusinessRuleError(
			"Transfer limit exceeded: role %s may transfer at most %d credits per transfer", actingRole, limit)
	}

	// Lock both balance rows in deterministic order so two opposing
	// transfers cannot deadlock.
	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}
	locked := map[string]*model.CreditBalance{}
	for _, id := range []string{first, second} {
		b, err := uc.balances.FindByUserID(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = b
	}
	from, to := locked[fromUserID], locked[toUserID]

	// Transfers move demand credits only; subscription credits are granted
	// by a plan and stay with the grantee.
	if from.AmountDemand < amount {
		metrics.IncTransfer(string(actingRole), "rejected")
		return nil, domain.NewBusinessRuleError(
			"insufficient demand credits: requested %d, available %d", amount, from.AmountDemand)
	}

	from.AmountDemand -= amount
	to.AmountDemand += amount
	if err := uc.balances.Save(ctx, tx, from); err != nil {
		return nil, err
	}
	if err := uc.balances.Save(ctx, tx, to); err != nil {
		return nil, err
	}

	debit := model.NewCreditHistoryEntry(from.UserID, from.ID, amount, description, model.OperationDecrease, model.CreditTypeDemand)
	if err := uc.history.Append(ctx, tx, debit); err != nil {
		return nil, err
	}
	credit := model.NewCreditHistoryEntry(to.UserID, to.ID, amount, description, model.OperationIncrease, model.CreditTypeDemand)
	if err := uc.history.Append(ctx, tx, credit); err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("from", fromUserID).
		Str("to", toUserID).
		Int64("amount", amount).
		Str("role", string(actingRole)).
		Msg("credits transferred")
	return &TransferResult{From: from, To: to}, nil
}

func (uc *transferUC) invalidate(ctx context.Context, userID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.InvalidateBalance(ctx, userID); err != nil {
		uc.log.Warn().Err(err).Str("user_id", userID).Msg("balance cache invalidation failed")
	}
}
