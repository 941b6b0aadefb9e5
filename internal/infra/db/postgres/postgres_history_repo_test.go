//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"marketplace-credits/internal/domain/model"
)

func TestCreditHistoryRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewCreditHistoryRepo(testPool)
	balanceRepo := NewCreditBalanceRepo(testPool)

	t.Run("should append and list entries newest first", func(t *testing.T) {
		cleanup(t)
		balance, _ := model.NewCreditBalance("", "user-1", 0, 0)
		if err := balanceRepo.Save(ctx, nil, balance); err != nil {
			t.Fatalf("failed to save balance: %v", err)
		}

		for i := 0; i < 5; i++ {
			entry := model.NewCreditHistoryEntry("user-1", balance.ID, int64(i+1), fmt.Sprintf("grant %d", i+1), model.OperationIncrease, model.CreditTypeDemand)
			if err := repo.Append(ctx, nil, entry); err != nil {
				t.Fatalf("failed to append entry %d: %v", i, err)
			}
		}

		entries, total, err := repo.ListByUserID(ctx, nil, "user-1", 0, 10)
		if err != nil {
			t.Fatalf("ListByUserID failed: %v", err)
		}
		if total != 5 {
			t.Errorf("expected total 5, got %d", total)
		}
		if len(entries) != 5 {
			t.Fatalf("expected 5 entries, got %d", len(entries))
		}
		if entries[0].Amount != 5 || entries[4].Amount != 1 {
			t.Error("entries are not ordered newest first")
		}
	})

	t.Run("should paginate with offset and limit", func(t *testing.T) {
		cleanup(t)
		balance, _ := model.NewCreditBalance("", "user-1", 0, 0)
		if err := balanceRepo.Save(ctx, nil, balance); err != nil {
			t.Fatalf("failed to save balance: %v", err)
		}

		for i := 0; i < 5; i++ {
			entry := model.NewCreditHistoryEntry("user-1", balance.ID, int64(i+1), "grant", model.OperationIncrease, model.CreditTypeSub)
			if err := repo.Append(ctx, nil, entry); err != nil {
				t.Fatalf("failed to append entry %d: %v", i, err)
			}
		}

		entries, total, err := repo.ListByUserID(ctx, nil, "user-1", 2, 2)
		if err != nil {
			t.Fatalf("ListByUserID failed: %v", err)
		}
		if total != 5 {
			t.Errorf("expected total 5 regardless of page, got %d", total)
		}
		if len(entries) != 2 {
			t.Fatalf("expected a page of 2 entries, got %d", len(entries))
		}
		if entries[0].Amount != 3 || entries[1].Amount != 2 {
			t.Errorf("unexpected page contents: %d, %d", entries[0].Amount, entries[1].Amount)
		}
	})

	t.Run("listing an unknown user yields an empty page", func(t *testing.T) {
		cleanup(t)
		entries, total, err := repo.ListByUserID(ctx, nil, "nobody", 0, 10)
		if err != nil {
			t.Fatalf("ListByUserID failed: %v", err)
		}
		if total != 0 || len(entries) != 0 {
			t.Errorf("expected empty result, got %d entries (total %d)", len(entries), total)
		}
	})
}
