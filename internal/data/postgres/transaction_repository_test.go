package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
)

const recordColumnsPattern = `id, reference_code, wallet_id, counterparty_wallet_id, type, amount, fee,
			fee_policy_version, status, failure_reason, balance_after, note, payment_method,
			payment_ref, correlation_id, created_at, completed_at`

func recordRows(rec *transaction.Record) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "reference_code", "wallet_id", "counterparty_wallet_id", "type", "amount", "fee",
		"fee_policy_version", "status", "failure_reason", "balance_after", "note", "payment_method",
		"payment_ref", "correlation_id", "created_at", "completed_at"}).
		AddRow(rec.ID, rec.ReferenceCode, rec.WalletID, rec.CounterpartyWalletID, rec.Type, rec.Amount, rec.Fee,
			rec.FeePolicyVersion, rec.Status, rec.FailureReason, rec.BalanceAfter, rec.Note, rec.PaymentMethod,
			rec.PaymentRef, rec.CorrelationID, rec.CreatedAt, rec.CompletedAt)
}

func pendingDeposit() *transaction.Record {
	rec := transaction.NewPending("dep-1", uuid.New(), shared.TransactionTypeDeposit, 100_000)
	rec.PaymentMethod = shared.PaymentMethodCard
	return rec
}

func TestTransactionRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	rec := pendingDeposit()

	query := `
		INSERT INTO wallet_transactions \(reference_code, wallet_id, counterparty_wallet_id, type, amount, fee,
			fee_policy_version, status, failure_reason, balance_after, note, payment_method,
			payment_ref, correlation_id, created_at, completed_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11, \$12, \$13, \$14, \$15, \$16\)
		RETURNING id
	`

	args := []interface{}{
		rec.ReferenceCode, rec.WalletID, rec.CounterpartyWalletID, rec.Type, rec.Amount, rec.Fee,
		rec.FeePolicyVersion, rec.Status, rec.FailureReason, rec.BalanceAfter, rec.Note, rec.PaymentMethod,
		rec.PaymentRef, rec.CorrelationID, rec.CreatedAt, rec.CompletedAt,
	}

	t.Run("success assigns the generated id", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(args...).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		err := repo.Create(ctx, rec)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), rec.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate reference", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation})

		err := repo.Create(ctx, rec)
		var dupErr transaction.ErrDuplicateReference
		assert.ErrorAs(t, err, &dupErr)
		assert.Equal(t, rec.ReferenceCode, dupErr.ReferenceCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_GetByReferenceCode(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	expected := pendingDeposit()
	expected.ID = 7

	query := `SELECT ` + recordColumnsPattern + `
		FROM wallet_transactions
		WHERE reference_code = \$1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.ReferenceCode).WillReturnRows(recordRows(expected))

		rec, err := repo.GetByReferenceCode(ctx, expected.ReferenceCode)
		assert.NoError(t, err)
		assert.Equal(t, expected, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("missing-ref").WillReturnError(pgx.ErrNoRows)

		rec, err := repo.GetByReferenceCode(ctx, "missing-ref")
		assert.Nil(t, rec)
		var notFoundErr transaction.ErrRecordNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, "missing-ref", notFoundErr.ReferenceCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_Finalize(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}

	balanceAfter := int64(99_500)
	fin := transaction.Finalization{
		Status:           shared.TransactionStatusCompleted,
		Fee:              500,
		FeePolicyVersion: 1,
		BalanceAfter:     &balanceAfter,
		PaymentRef:       "pay-abc",
		CompletedAt:      time.Now(),
	}

	query := `
		UPDATE wallet_transactions
		SET status = \$1, fee = \$2, fee_policy_version = \$3, balance_after = \$4,
			failure_reason = \$5, payment_ref = \$6, completed_at = \$7
		WHERE reference_code = \$8 AND status = \$9
	`

	args := []interface{}{
		fin.Status, fin.Fee, fin.FeePolicyVersion, fin.BalanceAfter,
		string(fin.FailureReason), fin.PaymentRef, fin.CompletedAt,
		"dep-1", shared.TransactionStatusPending,
	}

	t.Run("pending record is finalized", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(args...).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		finalized, err := repo.Finalize(ctx, "dep-1", fin)
		assert.NoError(t, err)
		assert.True(t, finalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already final record is left untouched", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(args...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		finalized, err := repo.Finalize(ctx, "dep-1", fin)
		assert.NoError(t, err)
		assert.False(t, finalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_ListByWallet(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	walletID := uuid.New()

	first := transaction.NewPending("dep-1", walletID, shared.TransactionTypeDeposit, 100_000)
	first.ID = 2
	second := transaction.NewPending("wd-1", walletID, shared.TransactionTypeWithdrawal, 20_000)
	second.ID = 1

	query := `SELECT ` + recordColumnsPattern + `
		FROM wallet_transactions
		WHERE wallet_id = \$1
	`

	t.Run("paginated", func(t *testing.T) {
		rows := recordRows(first).
			AddRow(second.ID, second.ReferenceCode, second.WalletID, second.CounterpartyWalletID, second.Type,
				second.Amount, second.Fee, second.FeePolicyVersion, second.Status, second.FailureReason,
				second.BalanceAfter, second.Note, second.PaymentMethod, second.PaymentRef, second.CorrelationID,
				second.CreatedAt, second.CompletedAt)

		mock.ExpectQuery(query).WithArgs(walletID, 10).WillReturnRows(rows)

		records, err := repo.ListByWallet(ctx, walletID, transaction.HistoryFilter{Limit: 10})
		assert.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "dep-1", records[0].ReferenceCode)
		assert.Equal(t, "wd-1", records[1].ReferenceCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("type filter adds a clause", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(walletID, shared.TransactionTypeDeposit, 10).
			WillReturnRows(recordRows(first))

		records, err := repo.ListByWallet(ctx, walletID, transaction.HistoryFilter{
			Type:  shared.TransactionTypeDeposit,
			Limit: 10,
		})
		assert.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, shared.TransactionTypeDeposit, records[0].Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_CountByWallet(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	walletID := uuid.New()

	query := `
		SELECT COUNT\(\*\)
		FROM wallet_transactions
		WHERE wallet_id = \$1
	`

	mock.ExpectQuery(query).WithArgs(walletID).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))

	count, err := repo.CountByWallet(ctx, walletID, transaction.HistoryFilter{})
	assert.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListPendingBefore(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}

	stuck := transaction.NewPending("stuck-1", uuid.New(), shared.TransactionTypeWithdrawal, 5_000)
	stuck.ID = 3
	cutoff := time.Now().Add(-10 * time.Minute)

	query := `SELECT ` + recordColumnsPattern + `
		FROM wallet_transactions
		WHERE status = \$1 AND created_at < \$2
		ORDER BY created_at ASC
		LIMIT \$3
	`

	mock.ExpectQuery(query).
		WithArgs(shared.TransactionStatusPending, cutoff, 100).
		WillReturnRows(recordRows(stuck))

	records, err := repo.ListPendingBefore(ctx, cutoff, 100)
	assert.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "stuck-1", records[0].ReferenceCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
