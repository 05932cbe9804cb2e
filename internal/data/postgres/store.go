package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/arena-wallet-ledger/internal/engine"
	"github.com/arena-wallet-ledger/internal/platform/persistence"
)

// Store is the production engine.Store. RunAtomic maps directly onto a
// database transaction: row locks taken via LockForUpdate are held until the
// transaction commits or rolls back, and the wallet update, record
// finalization, and outbox insert all land in the same commit.
type Store struct {
	db           *persistence.PostgresDB
	wallets      *WalletRepository
	transactions *TransactionRepository
	outbox       *OutboxRepository
}

func NewStore(logger *slog.Logger, db *persistence.PostgresDB) *Store {
	return &Store{
		db:           db,
		wallets:      NewWalletRepository(logger, db),
		transactions: NewTransactionRepository(logger, db),
		outbox:       NewOutboxRepository(logger, db),
	}
}

// Stores returns pool-backed repositories for non-transactional access
func (s *Store) Stores() engine.Stores {
	return engine.Stores{
		Wallets:      s.wallets,
		Transactions: s.transactions,
		Outbox:       s.outbox,
	}
}

// RunAtomic executes fn inside a single database transaction
func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, st engine.Stores) error) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, engine.Stores{
			Wallets:      s.wallets.WithTx(tx),
			Transactions: s.transactions.WithTx(tx),
			Outbox:       s.outbox.WithTx(tx),
		})
	})
}
