package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet-ledger/internal/domain/wallet"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testWallet() *wallet.Wallet {
	now := time.Now()
	return &wallet.Wallet{
		ID:             uuid.New(),
		OwnerID:        "player-1",
		Balance:        10_000,
		TotalReceived:  10_000,
		TotalWithdrawn: 0,
		Locked:         false,
		Version:        2,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func walletRows(w *wallet.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "owner_id", "balance", "total_received", "total_withdrawn", "locked", "version", "created_at", "updated_at"}).
		AddRow(w.ID, w.OwnerID, w.Balance, w.TotalReceived, w.TotalWithdrawn, w.Locked, w.Version, w.CreatedAt, w.UpdatedAt)
}

func TestWalletRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: newTestLogger()}
	w := testWallet()

	query := `
		INSERT INTO wallet_accounts \(id, owner_id, balance, total_received, total_withdrawn, locked, version, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.ID, w.OwnerID, w.Balance, w.TotalReceived, w.TotalWithdrawn, w.Locked, w.Version, w.CreatedAt, w.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, w)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate owner", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.ID, w.OwnerID, w.Balance, w.TotalReceived, w.TotalWithdrawn, w.Locked, w.Version, w.CreatedAt, w.UpdatedAt).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation})

		err := repo.Create(ctx, w)
		var dupErr wallet.ErrDuplicateOwner
		assert.ErrorAs(t, err, &dupErr)
		assert.Equal(t, w.OwnerID, dupErr.OwnerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(w.ID, w.OwnerID, w.Balance, w.TotalReceived, w.TotalWithdrawn, w.Locked, w.Version, w.CreatedAt, w.UpdatedAt).
			WillReturnError(dbErr)

		err := repo.Create(ctx, w)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create wallet")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: newTestLogger()}
	expected := testWallet()

	query := `
		SELECT id, owner_id, balance, total_received, total_withdrawn, locked, version, created_at, updated_at
		FROM wallet_accounts
		WHERE id = \$1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.ID).WillReturnRows(walletRows(expected))

		w, err := repo.GetByID(ctx, expected.ID)
		assert.NoError(t, err)
		assert.Equal(t, expected, w)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.ID).WillReturnError(pgx.ErrNoRows)

		w, err := repo.GetByID(ctx, expected.ID)
		assert.Nil(t, w)
		var notFoundErr wallet.ErrWalletNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, expected.ID, notFoundErr.WalletID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_GetByOwnerID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: newTestLogger()}
	expected := testWallet()

	query := `
		SELECT id, owner_id, balance, total_received, total_withdrawn, locked, version, created_at, updated_at
		FROM wallet_accounts
		WHERE owner_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.OwnerID).WillReturnRows(walletRows(expected))

		w, err := repo.GetByOwnerID(ctx, expected.OwnerID)
		assert.NoError(t, err)
		assert.Equal(t, expected, w)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no wallet yet returns nil without error", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("new-owner").WillReturnError(pgx.ErrNoRows)

		w, err := repo.GetByOwnerID(ctx, "new-owner")
		assert.NoError(t, err)
		assert.Nil(t, w)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: newTestLogger()}
	w := testWallet()

	query := `
		UPDATE wallet_accounts
		SET balance = \$1, total_received = \$2, total_withdrawn = \$3, locked = \$4, version = \$5, updated_at = \$6
		WHERE id = \$7 AND version = \$8
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.Balance, w.TotalReceived, w.TotalWithdrawn, w.Locked, w.Version, w.UpdatedAt, w.ID, w.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, w)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version mismatch", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.Balance, w.TotalReceived, w.TotalWithdrawn, w.Locked, w.Version, w.UpdatedAt, w.ID, w.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, w)
		var conflictErr wallet.ErrConcurrentModification
		assert.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, w.ID, conflictErr.WalletID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(w.Balance, w.TotalReceived, w.TotalWithdrawn, w.Locked, w.Version, w.UpdatedAt, w.ID, w.Version-1).
			WillReturnError(dbErr)

		err := repo.Update(ctx, w)
		assert.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: newTestLogger()}
	expected := testWallet()

	query := `
		SELECT id, owner_id, balance, total_received, total_withdrawn, locked, version, created_at, updated_at
		FROM wallet_accounts
		WHERE id = \$1
		FOR UPDATE
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.ID).WillReturnRows(walletRows(expected))

		w, err := repo.LockForUpdate(ctx, expected.ID)
		assert.NoError(t, err)
		assert.Equal(t, expected, w)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.ID).WillReturnError(pgx.ErrNoRows)

		w, err := repo.LockForUpdate(ctx, expected.ID)
		assert.Nil(t, w)
		var notFoundErr wallet.ErrWalletNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
