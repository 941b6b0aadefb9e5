// File: internal/usecase/promo_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
	"marketplace-credits/internal/infra/metrics"
)

// Compile-time check
var _ PromoUseCase = (*promoUC)(nil)

// PromoValidation is the caller-facing result of a non-throwing validation.
type PromoValidation struct {
	Valid  bool
	Reason string
}

// PromoUseResult pairs the code definition with the usage row that redeemed it.
type PromoUseResult struct {
	PromoCode *model.PromoCode
	Usage     *model.PromoCodeUsage
}

// PromoCodeInput carries admin create/update parameters. An empty Code asks
// the service to generate one.
type PromoCodeInput struct {
	Code            string
	Discount        int
	AllowedTimes    int
	AmountAvailable *int // defaults to AllowedTimes on create
	ExpirationDate  time.Time
	CreatedBy       string
}

// PromoUseCase manages promo code definitions and redemptions.
//
// There are two redemption entry points sharing the same state-mutation
// primitive: Use (structured errors) and UseLegacy (frozen literal error
// strings consumed by existing clients). Their error handling must never be
// merged.
type PromoUseCase interface {
	// ValidateForUser runs the redemption checks in contract order and
	// reports the first failing reason without mutating anything.
	ValidateForUser(ctx context.Context, code, userID string) (*PromoValidation, error)
	// Use redeems a code for the user: atomically decrements availability and
	// records the usage.
	Use(ctx context.Context, code, userID string, transactionID *string) (*PromoUseResult, error)
	// UseTx is the in-transaction redemption primitive used by the payment
	// orchestrator.
	UseTx(ctx context.Context, tx repository.Tx, code, userID string, transactionID *string) (*PromoUseResult, error)
	// UseLegacy redeems a code through the same decrement-and-record
	// primitive as Use, but applies the historical validation ordering
	// (active -> available -> not-expired) and surfaces the exact legacy
	// error strings.
	UseLegacy(ctx context.Context, code, userID string) (*model.PromoCode, error)

	Create(ctx context.Context, in PromoCodeInput) (*model.PromoCode, error)
	Update(ctx context.Context, code string, discount *int, expiration *time.Time, active *bool) (*model.PromoCode, error)
	Cancel(ctx context.Context, code string) (*model.PromoCode, error)
	Delete(ctx context.Context, code string) error
	// DeactivateExpired flags expired-but-active codes inactive; run by the
	// background worker.
	DeactivateExpired(ctx context.Context) (int, error)
}

type promoUC struct {
	codes repository.PromoCodeRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
	now   func() time.Time
}

func NewPromoUseCase(codes repository.PromoCodeRepository, tm repository.TransactionManager, logger *zerolog.Logger) *promoUC {
	l := logger.With().Str("component", "PromoUC").Logger()
	return &promoUC{codes: codes, tm: tm, log: &l, now: time.Now}
}

// Validation reasons, most actionable failure first (check order is part of
// the contract).
const (
	reasonNotFound    = "promo code does not exist"
	reasonInactive    = "promo code is not active"
	reasonExhausted   = "promo code has no redemptions left"
	reasonExpired     = "promo code has expired"
	reasonAlreadyUsed = "promo code already used by this user"
)

func (uc *promoUC) ValidateForUser(ctx context.Context, code, userID string) (*PromoValidation, error) {
	if code == "" || userID == "" {
		return nil, NewValidationFailure("code", "code and userId must not be empty")
	}
	return uc.validateForUser(ctx, repository.NoTX, code, userID)
}

func (uc *promoUC) validateForUser(ctx context.Context, tx repository.Tx, code, userID string) (*PromoValidation, error) {
	pc, err := uc.codes.FindByCode(ctx, tx, code)
	if err == domain.ErrNotFound {
		return &PromoValidation{Valid: false, Reason: reasonNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	if !pc.Active {
		return &PromoValidation{Valid: false, Reason: reasonInactive}, nil
	}
	if pc.Exhausted() {
		return &PromoValidation{Valid: false, Reason: reasonExhausted}, nil
	}
	if pc.Expired(uc.now()) {
		return &PromoValidation{Valid: false, Reason: reasonExpired}, nil
	}
	used, err := uc.codes.HasUsageByUser(ctx, tx, pc.ID, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return &PromoValidation{Valid: false, Reason: reasonAlreadyUsed}, nil
	}
	return &PromoValidation{Valid: true}, nil
}

func (uc *promoUC) Use(ctx context.Context, code, userID string, transactionID *string) (*PromoUseResult, error) {
	var result *PromoUseResult
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		result, err = uc.UseTx(ctx, tx, code, userID, transactionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *promoUC) UseTx(ctx context.Context, tx repository.Tx, code, userID string, transactionID *string) (*PromoUseResult, error) {
	if code == "" || userID == "" {
		return nil, NewValidationFailure("code", "code and userId must not be empty")
	}
	validation, err := uc.validateForUser(ctx, tx, code, userID)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		metrics.IncPromoRedemption("rejected")
		return nil, domain.NewBusinessRuleError("promo code %q rejected: %s", code, validation.Reason)
	}

	pc, err := uc.codes.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	usage, err := uc.redeem(ctx, tx, pc, userID, transactionID)
	if err != nil {
		if err == domain.ErrPromoCodeExhausted {
			metrics.IncPromoRedemption("rejected")
			return nil, domain.NewBusinessRuleError("promo code %q rejected: %s", code, reasonExhausted)
		}
		return nil, err
	}

	metrics.IncPromoRedemption("success")
	uc.log.Info().Str("code", code).Str("user_id", userID).Msg("promo code redeemed")
	return &PromoUseResult{PromoCode: pc, Usage: usage}, nil
}

// redeem is the shared state-mutation primitive: decrement availability and
// record the usage. Both redemption entry points go through here; they differ
// only in how the failure is formatted for the caller.
func (uc *promoUC) redeem(ctx context.Context, tx repository.Tx, pc *model.PromoCode, userID string, transactionID *string) (*model.PromoCodeUsage, error) {
	// The conditional decrement is the arbiter for concurrent redemptions
	// racing for the last slot; a decrement to negative surfaces as exhausted.
	if err := uc.codes.DecrementAvailability(ctx, tx, pc.ID); err != nil {
		return nil, err
	}
	pc.AmountAvailable--

	usage := model.NewPromoCodeUsage(pc.ID, userID, transactionID)
	if err := uc.codes.InsertUsage(ctx, tx, usage); err != nil {
		return nil, err
	}
	return usage, nil
}

// UseLegacy reproduces the historical redemption path: same mutation as Use,
// but the checks run in the historical order and the returned errors carry
// literal messages that are part of the external contract; they must
// propagate unwrapped.
func (uc *promoUC) UseLegacy(ctx context.Context, code, userID string) (*model.PromoCode, error) {
	if userID == "" {
		return nil, NewValidationFailure("userId", "must not be empty")
	}
	var redeemed *model.PromoCode
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		pc, err := uc.codes.FindByCode(ctx, tx, code)
		if err == domain.ErrNotFound {
			return domain.ErrPromoCodeNotFoundLegacy
		}
		if err != nil {
			return err
		}
		if !pc.Active {
			return domain.ErrPromoCodeUnavailableLegacy
		}
		if pc.Exhausted() {
			return domain.ErrPromoCodeUnavailableLegacy
		}
		if pc.Expired(uc.now()) {
			return domain.ErrPromoCodeUnavailableLegacy
		}
		if _, err := uc.redeem(ctx, tx, pc, userID, nil); err != nil {
			if err == domain.ErrPromoCodeExhausted {
				metrics.IncPromoRedemption("rejected")
				return domain.ErrPromoCodeUnavailableLegacy
			}
			return err
		}
		redeemed = pc
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPromoRedemption("success")
	uc.log.Info().Str("code", code).Str("user_id", userID).Msg("promo code redeemed via legacy path")
	return redeemed, nil
}

func (uc *promoUC) Create(ctx context.Context, in PromoCodeInput) (*model.PromoCode, error) {
	if in.Code == "" {
		code, err := generatePromoCode()
		if err != nil {
			return nil, err
		}
		in.Code = code
	}

	ve := domain.NewValidationError()
	if in.Discount < 0 || in.Discount > 100 {
		ve.Add("discount", "must be between 0 and 100")
	}
	if in.AllowedTimes <= 0 {
		ve.Add("allowedTimes", "must be positive")
	}
	if in.AmountAvailable != nil && *in.AmountAvailable > in.AllowedTimes {
		ve.Add("amountAvailable", "must not exceed allowedTimes")
	}
	if in.AmountAvailable != nil && *in.AmountAvailable < 0 {
		ve.Add("amountAvailable", "must be non-negative")
	}
	if !in.ExpirationDate.After(uc.now()) {
		ve.Add("expirationDate", "must be strictly in the future")
	}
	if in.CreatedBy == "" {
		ve.Add("createdBy", "must not be empty")
	}
	if !ve.Empty() {
		return nil, ve
	}

	var created *model.PromoCode
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		existing, err := uc.codes.FindByCode(ctx, tx, in.Code)
		if err != nil && err != domain.ErrNotFound {
			return err
		}
		if existing != nil {
			return domain.NewBusinessRuleError("promo code %q already exists", in.Code)
		}
		created, err = model.NewPromoCode("", in.Code, in.Discount, in.AllowedTimes, in.ExpirationDate, in.CreatedBy)
		if err != nil {
			return err
		}
		if in.AmountAvailable != nil {
			created.AmountAvailable = *in.AmountAvailable
		}
		return uc.codes.Save(ctx, tx, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (uc *promoUC) Update(ctx context.Context, code string, discount *int, expiration *time.Time, active *bool) (*model.PromoCode, error) {
	if discount != nil && (*discount < 0 || *discount > 100) {
		return nil, NewValidationFailure("discount", "must be between 0 and 100")
	}
	var updated *model.PromoCode
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		pc, err := uc.codes.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if pc.Cancelled() {
			return domain.NewBusinessRuleError("promo code %q is cancelled and cannot be updated", code)
		}
		if discount != nil {
			pc.Discount = *discount
		}
		if expiration != nil {
			pc.ExpirationDate = *expiration
		}
		if active != nil {
			pc.Active = *active
		}
		pc.UpdatedAt = uc.now()
		updated = pc
		return uc.codes.Save(ctx, tx, pc)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel is the terminal, irreversible admin operation; it is the required
// path for retiring a code that has been used.
func (uc *promoUC) Cancel(ctx context.Context, code string) (*model.PromoCode, error) {
	var cancelled *model.PromoCode
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		pc, err := uc.codes.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if pc.Cancelled() {
			return domain.NewBusinessRuleError("promo code %q is already cancelled", code)
		}
		now := uc.now()
		pc.Active = false
		pc.CancelledAt = &now
		pc.UpdatedAt = now
		cancelled = pc
		return uc.codes.Save(ctx, tx, pc)
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (uc *promoUC) Delete(ctx context.Context, code string) error {
	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		pc, err := uc.codes.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		usages, err := uc.codes.CountUsages(ctx, tx, pc.ID)
		if err != nil {
			return err
		}
		if usages > 0 {
			return domain.NewBusinessRuleError("promo code %q has %d usages and cannot be deleted; cancel it instead", code, usages)
		}
		return uc.codes.Delete(ctx, tx, pc.ID)
	})
}

func (uc *promoUC) DeactivateExpired(ctx context.Context) (int, error) {
	var n int
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		n, err = uc.codes.DeactivateExpired(ctx, tx, uc.now())
		return err
	})
	return n, err
}
