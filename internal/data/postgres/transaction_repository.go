package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/platform/persistence"
)

const recordColumns = `id, reference_code, wallet_id, counterparty_wallet_id, type, amount, fee,
		fee_policy_version, status, failure_reason, balance_after, note, payment_method,
		payment_ref, correlation_id, created_at, completed_at`

// TransactionRepository implements the transaction.Repository interface
// for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) *TransactionRepository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a PENDING record. The unique index on reference_code
// arbitrates concurrent first calls for the same code: the loser gets
// ErrDuplicateReference and adopts the winner's record.
func (r *TransactionRepository) Create(ctx context.Context, record *transaction.Record) error {
	query := `
		INSERT INTO wallet_transactions (reference_code, wallet_id, counterparty_wallet_id, type, amount, fee,
			fee_policy_version, status, failure_reason, balance_after, note, payment_method,
			payment_ref, correlation_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		record.ReferenceCode,
		record.WalletID,
		record.CounterpartyWalletID,
		record.Type,
		record.Amount,
		record.Fee,
		record.FeePolicyVersion,
		record.Status,
		record.FailureReason,
		record.BalanceAfter,
		record.Note,
		record.PaymentMethod,
		record.PaymentRef,
		record.CorrelationID,
		record.CreatedAt,
		record.CompletedAt,
	).Scan(&record.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return transaction.ErrDuplicateReference{ReferenceCode: record.ReferenceCode}
		}
		r.logger.Error("Failed to create transaction record", "reference_code", record.ReferenceCode, "error", err)
		return fmt.Errorf("failed to create transaction record: %w", err)
	}

	return nil
}

// GetByReferenceCode retrieves a record by its idempotency key
func (r *TransactionRepository) GetByReferenceCode(ctx context.Context, referenceCode string) (*transaction.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM wallet_transactions
		WHERE reference_code = $1
	`

	rec, err := r.scanRecord(r.querier.QueryRow(ctx, query, referenceCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrRecordNotFound{ReferenceCode: referenceCode}
		}
		r.logger.Error("Failed to get transaction record", "reference_code", referenceCode, "error", err)
		return nil, fmt.Errorf("failed to get transaction record: %w", err)
	}

	return rec, nil
}

// GetByID retrieves a record by its numeric id
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM wallet_transactions
		WHERE id = $1
	`

	rec, err := r.scanRecord(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrRecordNotFound{ReferenceCode: strconv.FormatInt(id, 10)}
		}
		r.logger.Error("Failed to get transaction record", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get transaction record: %w", err)
	}

	return rec, nil
}

// Finalize flips a PENDING record to its terminal status. The status guard in
// the WHERE clause makes finalization first-writer-wins: a record that is
// already COMPLETED or FAILED is never modified again, and the call reports
// false so the caller can replay the stored outcome instead.
func (r *TransactionRepository) Finalize(ctx context.Context, referenceCode string, fin transaction.Finalization) (bool, error) {
	query := `
		UPDATE wallet_transactions
		SET status = $1, fee = $2, fee_policy_version = $3, balance_after = $4,
			failure_reason = $5, payment_ref = $6, completed_at = $7
		WHERE reference_code = $8 AND status = $9
	`

	result, err := r.querier.Exec(ctx, query,
		fin.Status,
		fin.Fee,
		fin.FeePolicyVersion,
		fin.BalanceAfter,
		string(fin.FailureReason),
		fin.PaymentRef,
		fin.CompletedAt,
		referenceCode,
		shared.TransactionStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to finalize transaction record", "reference_code", referenceCode, "error", err)
		return false, fmt.Errorf("failed to finalize transaction record: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListByWallet retrieves a wallet's records, newest first, narrowed by the
// filter's type and time range.
func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, filter transaction.HistoryFilter) ([]*transaction.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM wallet_transactions
		WHERE wallet_id = $1
	`
	args := []interface{}{walletID}

	query, args = appendFilter(query, args, filter)
	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transaction records", "wallet_id", walletID.String(), "error", err)
		return nil, fmt.Errorf("failed to list transaction records: %w", err)
	}
	defer rows.Close()

	return r.collectRecords(rows)
}

// CountByWallet returns the total number of records matching the filter,
// ignoring its pagination fields.
func (r *TransactionRepository) CountByWallet(ctx context.Context, walletID uuid.UUID, filter transaction.HistoryFilter) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM wallet_transactions
		WHERE wallet_id = $1
	`
	args := []interface{}{walletID}
	query, args = appendFilter(query, args, filter)

	var count int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count transaction records", "wallet_id", walletID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transaction records: %w", err)
	}

	return count, nil
}

// ListPendingBefore returns PENDING records created before the cutoff, oldest
// first. The reconciler sweeps these to resolve operations stuck by a crash.
func (r *TransactionRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*transaction.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM wallet_transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, shared.TransactionStatusPending, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to list pending transaction records", "error", err)
		return nil, fmt.Errorf("failed to list pending transaction records: %w", err)
	}
	defer rows.Close()

	return r.collectRecords(rows)
}

func appendFilter(query string, args []interface{}, filter transaction.HistoryFilter) (string, []interface{}) {
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += ` AND type = $` + strconv.Itoa(len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += ` AND created_at < $` + strconv.Itoa(len(args))
	}
	return query, args
}

func (r *TransactionRepository) scanRecord(row pgx.Row) (*transaction.Record, error) {
	var rec transaction.Record
	err := row.Scan(
		&rec.ID,
		&rec.ReferenceCode,
		&rec.WalletID,
		&rec.CounterpartyWalletID,
		&rec.Type,
		&rec.Amount,
		&rec.Fee,
		&rec.FeePolicyVersion,
		&rec.Status,
		&rec.FailureReason,
		&rec.BalanceAfter,
		&rec.Note,
		&rec.PaymentMethod,
		&rec.PaymentRef,
		&rec.CorrelationID,
		&rec.CreatedAt,
		&rec.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *TransactionRepository) collectRecords(rows pgx.Rows) ([]*transaction.Record, error) {
	var records []*transaction.Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction record", "error", err)
			return nil, fmt.Errorf("failed to scan transaction record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transaction records", "error", err)
		return nil, fmt.Errorf("error iterating over transaction records: %w", err)
	}

	return records, nil
}
