package wallet

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines wallet persistence operations. Implementations must be
// usable both against a connection pool and inside a unit-of-work transaction.
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID string) (*Wallet, error)

	// Update persists the wallet conditioned on the previous version and
	// returns ErrConcurrentModification when the row changed underneath us.
	Update(ctx context.Context, w *Wallet) error

	// LockForUpdate acquires a pessimistic lock for the duration of the
	// enclosing unit of work. Callers locking more than one wallet must do
	// so in ascending wallet-id order.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Wallet, error)
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	WalletID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for wallet: " + e.WalletID.String()
}

// Is matches any ErrConcurrentModification when the target carries a nil id
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	return t.WalletID == uuid.Nil || e.WalletID == t.WalletID
}

// ErrWalletNotFound indicates a missing wallet
type ErrWalletNotFound struct {
	WalletID uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found: " + e.WalletID.String()
}

// Is matches any ErrWalletNotFound when the target carries a nil id
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	return t.WalletID == uuid.Nil || e.WalletID == t.WalletID
}

// ErrDuplicateOwner indicates the one-wallet-per-user rule was violated
type ErrDuplicateOwner struct {
	OwnerID string
}

func (e ErrDuplicateOwner) Error() string {
	return "wallet already exists for owner: " + e.OwnerID
}

// Is matches any ErrDuplicateOwner when the target carries no owner id
func (e ErrDuplicateOwner) Is(target error) bool {
	t, ok := target.(ErrDuplicateOwner)
	if !ok {
		return false
	}
	return t.OwnerID == "" || e.OwnerID == t.OwnerID
}
