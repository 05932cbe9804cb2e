package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/domain/outbox"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
)

// Stores bundles the repositories the engine mutates. Inside RunAtomic all
// three share one transactional scope.
type Stores struct {
	Wallets      wallet.Repository
	Transactions transaction.Repository
	Outbox       outbox.Repository
}

// Store is the engine's persistence boundary. The production implementation
// runs on pgx transactions; an in-memory implementation backs the concurrency
// tests.
type Store interface {
	// Stores returns repositories for non-transactional access.
	Stores() Stores

	// RunAtomic executes fn as a single atomic unit: either every mutation
	// made through s commits, or none do. Mutations must not be observable
	// by concurrent readers before RunAtomic returns nil.
	RunAtomic(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// BalanceInvalidator drops cached balances after a committed mutation.
// Implemented by the query layer's Redis cache.
type BalanceInvalidator interface {
	Invalidate(ctx context.Context, walletID uuid.UUID) error
}
