package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/domain/shared"
)

// HistoryFilter narrows history queries. Zero values mean "no filter".
type HistoryFilter struct {
	Type   shared.TransactionType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Finalization carries the terminal state written when a PENDING record is
// resolved. BalanceAfter is only set for COMPLETED records.
type Finalization struct {
	Status           shared.TransactionStatus
	Fee              int64
	FeePolicyVersion int
	BalanceAfter     *int64
	FailureReason    shared.FailureReason
	PaymentRef       string
	CompletedAt      time.Time
}

// Repository manages the append-only transaction log
type Repository interface {
	// Create inserts a PENDING record. The unique index on reference_code
	// arbitrates concurrent first calls: the loser gets ErrDuplicateReference.
	Create(ctx context.Context, record *Record) error

	GetByReferenceCode(ctx context.Context, referenceCode string) (*Record, error)
	GetByID(ctx context.Context, id int64) (*Record, error)

	// Finalize flips a record from PENDING to the given terminal status.
	// It reports false without error when the record was already final,
	// which is how concurrent retries discover they lost the race.
	Finalize(ctx context.Context, referenceCode string, fin Finalization) (bool, error)

	ListByWallet(ctx context.Context, walletID uuid.UUID, filter HistoryFilter) ([]*Record, error)
	CountByWallet(ctx context.Context, walletID uuid.UUID, filter HistoryFilter) (int64, error)

	// ListPendingBefore returns PENDING records created before the cutoff,
	// oldest first. Used by the reconciler to resolve stuck operations.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Record, error)
}

// ErrRecordNotFound indicates a missing transaction record
type ErrRecordNotFound struct {
	ReferenceCode string
}

func (e ErrRecordNotFound) Error() string {
	return "transaction record not found: " + e.ReferenceCode
}

// Is matches any ErrRecordNotFound when the target carries no reference code
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	return t.ReferenceCode == "" || e.ReferenceCode == t.ReferenceCode
}

// ErrDuplicateReference indicates the reference code is already taken.
// Callers treat it as "someone got here first" and replay the stored result.
type ErrDuplicateReference struct {
	ReferenceCode string
}

func (e ErrDuplicateReference) Error() string {
	return "duplicate reference code: " + e.ReferenceCode
}

// Is matches any ErrDuplicateReference when the target carries no reference code
func (e ErrDuplicateReference) Is(target error) bool {
	t, ok := target.(ErrDuplicateReference)
	if !ok {
		return false
	}
	return t.ReferenceCode == "" || e.ReferenceCode == t.ReferenceCode
}
