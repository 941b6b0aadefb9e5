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

var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

const membershipColumns = `id, user_id, stripe_customer_id, stripe_subscription_id, subscription_status, plan_type, last_payment_date, created_at, updated_at`

func (r *membershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO memberships (id, user_id, stripe_customer_id, stripe_subscription_id, subscription_status, plan_type, last_payment_date, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW());
`
	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.UserID, m.StripeCustomerID, m.StripeSubscriptionID, string(m.SubscriptionStatus), m.PlanType, m.LastPaymentDate, m.CreatedAt,
	)
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

func (r *membershipRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id = $1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.scanOne(ctx, tx, q, userID)
}

func (r *membershipRepo) FindByStripeCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE stripe_customer_id = $1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.scanOne(ctx, tx, q, customerID)
}

func (r *membershipRepo) scanOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.Membership, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	m := &model.Membership{}
	var status string
	if err := row.Scan(&m.ID, &m.UserID, &m.StripeCustomerID, &m.StripeSubscriptionID, &status, &m.PlanType, &m.LastPaymentDate, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	m.SubscriptionStatus = model.SubscriptionStatus(status)
	return m, nil
}

func (r *membershipRepo) UpdateStatus(ctx context.Context, tx repository.Tx, userID string, status model.SubscriptionStatus, subscriptionID *string, lastPaymentDate *time.Time) error {
	const q = `
UPDATE memberships
   SET subscription_status = $2,
       stripe_subscription_id = COALESCE($3, stripe_subscription_id),
       last_payment_date = COALESCE($4, last_payment_date),
       updated_at = NOW()
 WHERE user_id = $1;
`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, string(status), subscriptionID, lastPaymentDate)
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
