package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletLocked      = errors.New("wallet is locked")
	ErrEmptyOwnerID      = errors.New("owner id cannot be empty")
)

// Wallet holds one user's balance in minor currency units. It is the unit
// of locking and consistency: only the ledger engine mutates it, and every
// mutation bumps Version.
type Wallet struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Balance        int64     `json:"balance"`
	TotalReceived  int64     `json:"total_received"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	Locked         bool      `json:"locked"`
	Version        int       `json:"version"` // For optimistic locking
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewWallet creates an empty wallet for the given owner
func NewWallet(ownerID string) (*Wallet, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwnerID
	}

	now := time.Now()
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   0,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Credit adds the specified amount to the wallet balance
func (w *Wallet) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Locked {
		return ErrWalletLocked
	}

	w.Balance += amount
	w.TotalReceived += amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// Debit subtracts the specified amount from the wallet balance
func (w *Wallet) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Locked {
		return ErrWalletLocked
	}
	if w.Balance < amount {
		return ErrInsufficientFunds
	}

	w.Balance -= amount
	w.TotalWithdrawn += amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// CanDebit checks whether the wallet can cover the given amount
func (w *Wallet) CanDebit(amount int64) bool {
	return !w.Locked && w.Balance >= amount
}

// SetLocked freezes or unfreezes the wallet. A locked wallet rejects all
// mutating operations until unlocked.
func (w *Wallet) SetLocked(locked bool) {
	if w.Locked == locked {
		return
	}
	w.Locked = locked
	w.UpdatedAt = time.Now()
	w.Version++
}
