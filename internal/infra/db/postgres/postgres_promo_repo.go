package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
)

var _ repository.PromoCodeRepository = (*promoCodeRepo)(nil)

type promoCodeRepo struct {
	pool *pgxpool.Pool
}

func NewPromoCodeRepo(pool *pgxpool.Pool) *promoCodeRepo {
	return &promoCodeRepo{pool: pool}
}

func (r *promoCodeRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	const q = `
INSERT INTO promo_codes (id, code, discount, allowed_times, amount_available, expiration_date, active, cancelled_at, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
ON CONFLICT (id) DO UPDATE SET
  discount = EXCLUDED.discount,
  allowed_times = EXCLUDED.allowed_times,
  amount_available = EXCLUDED.amount_available,
  expiration_date = EXCLUDED.expiration_date,
  active = EXCLUDED.active,
  cancelled_at = EXCLUDED.cancelled_at,
  updated_at = NOW();
`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Code, p.Discount, p.AllowedTimes, p.AmountAvailable, p.ExpirationDate, p.Active, p.CancelledAt, p.CreatedBy, p.CreatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		// The code column is unique; a concurrent insert of the same code
		// string loses here, not in the caller's pre-check.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// FindByCode matches the code string case-sensitively. Locks the row when a
// tx handle is live.
func (r *promoCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	q := `
SELECT id, code, discount, allowed_times, amount_available, expiration_date, active, cancelled_at, created_by, created_at, updated_at
  FROM promo_codes
 WHERE code = $1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"

	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}

	p := &model.PromoCode{}
	if err := row.Scan(&p.ID, &p.Code, &p.Discount, &p.AllowedTimes, &p.AmountAvailable, &p.ExpirationDate, &p.Active, &p.CancelledAt, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

// DecrementAvailability is the arbiter for redemptions racing for the last
// slot: the conditional update only succeeds while the counter is positive.
func (r *promoCodeRepo) DecrementAvailability(ctx context.Context, tx repository.Tx, promoCodeID string) error {
	const q = `
UPDATE promo_codes
   SET amount_available = amount_available - 1, updated_at = NOW()
 WHERE id = $1 AND amount_available > 0;
`
	cmd, err := execSQL(ctx, r.pool, tx, q, promoCodeID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrPromoCodeExhausted
	}
	return nil
}

func (r *promoCodeRepo) Delete(ctx context.Context, tx repository.Tx, promoCodeID string) error {
	const q = `DELETE FROM promo_codes WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, promoCodeID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *promoCodeRepo) DeactivateExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `UPDATE promo_codes SET active = FALSE, updated_at = NOW() WHERE active = TRUE AND expiration_date <= $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *promoCodeRepo) InsertUsage(ctx context.Context, tx repository.Tx, u *model.PromoCodeUsage) error {
	const q = `
INSERT INTO promo_code_usages (id, promo_code_id, user_id, transaction_id, used_at)
VALUES ($1,$2,$3,$4,$5);
`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.PromoCodeID, u.UserID, u.TransactionID, u.UsedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promoCodeRepo) SetUsageTransactionID(ctx context.Context, tx repository.Tx, usageID, transactionID string) error {
	const q = `UPDATE promo_code_usages SET transaction_id = $2 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, usageID, transactionID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *promoCodeRepo) HasUsageByUser(ctx context.Context, tx repository.Tx, promoCodeID, userID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM promo_code_usages WHERE promo_code_id = $1 AND user_id = $2);`
	row, err := pickRow(ctx, r.pool, tx, q, promoCodeID, userID)
	if err != nil {
		return false, err
	}
	var used bool
	if err := row.Scan(&used); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return used, nil
}

func (r *promoCodeRepo) CountUsages(ctx context.Context, tx repository.Tx, promoCodeID string) (int64, error) {
	const q = `SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, promoCodeID)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
