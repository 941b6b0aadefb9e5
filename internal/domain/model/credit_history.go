package model

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Shared monotonic entropy so entries minted in the same millisecond still
// get distinct, strictly increasing ids. ulid.Monotonic readers are not safe
// for concurrent use; the mutex serializes them.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newHistoryID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// HistoryOperation is the direction of a balance change.
type HistoryOperation string

const (
	OperationIncrease HistoryOperation = "increase"
	OperationDecrease HistoryOperation = "decrease"
)

// CreditType identifies which bucket a change touched.
type CreditType string

const (
	CreditTypeDemand CreditType = "demand"
	CreditTypeSub    CreditType = "sub"
)

// CreditHistoryEntry is an immutable, append-only record of a single bucket
// mutation. Exactly one entry is written per bucket touched; entries are
// never updated or deleted.
type CreditHistoryEntry struct {
	ID          string
	UserID      string
	CreditsID   string
	Amount      int64
	Description string
	Operation   HistoryOperation
	Type        CreditType
	CreatedAt   time.Time
}

// NewCreditHistoryEntry stamps the entry with a ULID so entries sort by
// creation time even across nodes.
func NewCreditHistoryEntry(userID, creditsID string, amount int64, description string, op HistoryOperation, t CreditType) *CreditHistoryEntry {
	now := time.Now()
	return &CreditHistoryEntry{
		ID:          newHistoryID(now),
		UserID:      userID,
		CreditsID:   creditsID,
		Amount:      amount,
		Description: description,
		Operation:   op,
		Type:        t,
		CreatedAt:   now,
	}
}
