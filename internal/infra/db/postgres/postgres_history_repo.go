package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"marketplace-credits/internal/domain"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/repository"
)

var _ repository.CreditHistoryRepository = (*creditHistoryRepo)(nil)

type creditHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewCreditHistoryRepo(pool *pgxpool.Pool) *creditHistoryRepo {
	return &creditHistoryRepo{pool: pool}
}

// Append inserts one immutable entry. There is deliberately no update or
// delete path for this table.
func (r *creditHistoryRepo) Append(ctx context.Context, tx repository.Tx, e *model.CreditHistoryEntry) error {
	const q = `
INSERT INTO credit_history (id, user_id, credits_id, amount, description, operation, type, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.UserID, e.CreditsID, e.Amount, e.Description, string(e.Operation), string(e.Type), e.CreatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *creditHistoryRepo) ListByUserID(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.CreditHistoryEntry, int64, error) {
	const countQ = `SELECT COUNT(*) FROM credit_history WHERE user_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, countQ, userID)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	const q = `
SELECT id, user_id, credits_id, amount, description, operation, type, created_at
  FROM credit_history
 WHERE user_id = $1
 ORDER BY created_at DESC, id DESC
 OFFSET $2 LIMIT $3;
`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*model.CreditHistoryEntry
	for rows.Next() {
		e := &model.CreditHistoryEntry{}
		var op, typ string
		if err := rows.Scan(&e.ID, &e.UserID, &e.CreditsID, &e.Amount, &e.Description, &op, &typ, &e.CreatedAt); err != nil {
			return nil, 0, domain.ErrReadDatabaseRow
		}
		e.Operation = model.HistoryOperation(op)
		e.Type = model.CreditType(typ)
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}
	return entries, total, nil
}
