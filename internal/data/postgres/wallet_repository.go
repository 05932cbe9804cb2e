// Package postgres provides PostgreSQL implementations of the domain
// repositories. Postgres is the authoritative store for wallets, the
// transaction log, and the outbox; everything downstream is a projection.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arena-wallet-ledger/internal/domain/wallet"
	"github.com/arena-wallet-ledger/internal/platform/persistence"
)

const uniqueViolation = "23505"

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository backed by
// the connection pool.
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) *WalletRepository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so wallet updates commit
// atomically with the transaction log and the outbox.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new wallet. The unique index on owner_id enforces the
// one-wallet-per-owner rule at the database level.
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallet_accounts (id, owner_id, balance, total_received, total_withdrawn, locked, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.OwnerID,
		w.Balance,
		w.TotalReceived,
		w.TotalWithdrawn,
		w.Locked,
		w.Version,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return wallet.ErrDuplicateOwner{OwnerID: w.OwnerID}
		}
		r.logger.Error("Failed to create wallet", "owner_id", w.OwnerID, "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by its ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, owner_id, balance, total_received, total_withdrawn, locked, version, created_at, updated_at
		FROM wallet_accounts
		WHERE id = $1
	`

	return r.scanWallet(ctx, query, id)
}

// GetByOwnerID retrieves a wallet by its owner. Returns (nil, nil) when the
// owner has no wallet yet, which callers use as the provisioning check.
func (r *WalletRepository) GetByOwnerID(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	query := `
		SELECT id, owner_id, balance, total_received, total_withdrawn, locked, version, created_at, updated_at
		FROM wallet_accounts
		WHERE owner_id = $1
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, ownerID).Scan(
		&w.ID,
		&w.OwnerID,
		&w.Balance,
		&w.TotalReceived,
		&w.TotalWithdrawn,
		&w.Locked,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get wallet by owner", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to get wallet by owner: %w", err)
	}

	return &w, nil
}

// Update persists the wallet conditioned on the previous version.
// Returns ErrConcurrentModification if the row changed between read and write.
func (r *WalletRepository) Update(ctx context.Context, w *wallet.Wallet) error {
	query := `
		UPDATE wallet_accounts
		SET balance = $1, total_received = $2, total_withdrawn = $3, locked = $4, version = $5, updated_at = $6
		WHERE id = $7 AND version = $8
	`

	result, err := r.querier.Exec(ctx, query,
		w.Balance,
		w.TotalReceived,
		w.TotalWithdrawn,
		w.Locked,
		w.Version,
		w.UpdatedAt,
		w.ID,
		w.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update wallet", "id", w.ID.String(), "error", err)
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return wallet.ErrConcurrentModification{WalletID: w.ID}
	}

	return nil
}

// LockForUpdate obtains a row lock on the wallet and returns its current
// state. Only meaningful inside a transaction; the lock is held until commit
// or rollback.
func (r *WalletRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, owner_id, balance, total_received, total_withdrawn, locked, version, created_at, updated_at
		FROM wallet_accounts
		WHERE id = $1
		FOR UPDATE
	`

	return r.scanWallet(ctx, query, id)
}

func (r *WalletRepository) scanWallet(ctx context.Context, query string, id uuid.UUID) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&w.ID,
		&w.OwnerID,
		&w.Balance,
		&w.TotalReceived,
		&w.TotalWithdrawn,
		&w.Locked,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}
