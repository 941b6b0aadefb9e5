package repository

import (
	"context"

	"marketplace-credits/internal/domain/model"
)

// CreditBalanceRepository is the port for the per-user ledger rows.
//
// Implementations must lock the row (SELECT ... FOR UPDATE or equivalent)
// when FindByUserID is called with a live tx handle, so that read-modify-write
// sequences inside a transaction cannot race.
type CreditBalanceRepository interface {
	// Create inserts a new balance row. Returns domain.ErrAlreadyExists when
	// the user already has one, including when a concurrent create won the
	// race after the caller's existence pre-check.
	Create(ctx context.Context, tx Tx, balance *model.CreditBalance) error
	// Save inserts or updates a balance row.
	Save(ctx context.Context, tx Tx, balance *model.CreditBalance) error
	// FindByUserID loads the balance for a user. Returns domain.ErrNotFound
	// if the user has no (non-deleted) balance.
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.CreditBalance, error)
	// SoftDelete marks the balance deleted without removing the row; history
	// entries keep referencing it.
	SoftDelete(ctx context.Context, tx Tx, userID string) error
}

// CreditHistoryRepository is the port for the append-only mutation log.
type CreditHistoryRepository interface {
	// Append writes one immutable history entry.
	Append(ctx context.Context, tx Tx, entry *model.CreditHistoryEntry) error
	// ListByUserID returns entries newest-first along with the total count.
	ListByUserID(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.CreditHistoryEntry, int64, error)
}
