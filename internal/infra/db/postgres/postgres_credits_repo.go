package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.CreditBalanceRepository = (*creditBalanceRepo)(nil)

type creditBalanceRepo struct {
	pool *pgxpool.Pool
}

func NewCreditBalanceRepo(pool *pgxpool.Pool) *creditBalanceRepo {
	return &creditBalanceRepo{pool: pool}
}

// Create inserts a fresh row; a unique violation on the live user_id index
// means a concurrent create won and surfaces as ErrAlreadyExists. Soft-deleted
// rows do not block a new balance.
func (r *creditBalanceRepo) Create(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	const q = `
INSERT INTO credit_balances (id, user_id, amount_demand, amount_sub, created_at, updated_at, deleted_at)
VALUES ($1,$2,$3,$4,$5,NOW(),$6);
`
	_, err := execSQL(ctx, r.pool, tx, q, b.ID, b.UserID, b.AmountDemand, b.AmountSub, b.CreatedAt, b.DeletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *creditBalanceRepo) Save(ctx context.Context, tx repository.Tx, b *model.CreditBalance) error {
	const q = `
INSERT INTO credit_balances (id, user_id, amount_demand, amount_sub, created_at, updated_at, deleted_at)
VALUES ($1,$2,$3,$4,$5,NOW(),$6)
ON CONFLICT (user_id) WHERE deleted_at IS NULL DO UPDATE SET
  amount_demand = EXCLUDED.amount_demand,
  amount_sub = EXCLUDED.amount_sub,
  updated_at = NOW(),
  deleted_at = EXCLUDED.deleted_at;
`
	_, err := execSQL(ctx, r.pool, tx, q, b.ID, b.UserID, b.AmountDemand, b.AmountSub, b.CreatedAt, b.DeletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// FindByUserID loads the balance row. With a live tx handle the row is locked
// (FOR UPDATE) so read-modify-write inside a transaction cannot race.
func (r *creditBalanceRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.CreditBalance, error) {
	q := `
SELECT id, user_id, amount_demand, amount_sub, created_at, updated_at, deleted_at
  FROM credit_balances
 WHERE user_id = $1 AND deleted_at IS NULL`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"

	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	b := &model.CreditBalance{}
	if err := row.Scan(&b.ID, &b.UserID, &b.AmountDemand, &b.AmountSub, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return b, nil
}

func (r *creditBalanceRepo) SoftDelete(ctx context.Context, tx repository.Tx, userID string) error {
	const q = `UPDATE credit_balances SET deleted_at = NOW(), updated_at = NOW() WHERE user_id = $1 AND deleted_at IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID)
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
