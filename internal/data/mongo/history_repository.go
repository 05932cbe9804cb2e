// Package mongo provides the MongoDB transaction history archive. The archive
// is a downstream projection of the event stream, never an authoritative
// store: the ledger's source of truth stays in PostgreSQL.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arena-wallet-ledger/internal/domain/transaction"
)

const (
	// HistoryCollectionName is the name of the archive collection in MongoDB
	HistoryCollectionName = "transaction_history"
)

// ErrEntryNotFound indicates a missing archive entry
var ErrEntryNotFound = errors.New("archive entry not found")

// HistoryRepository stores finalized transaction records in MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Archive upserts a finalized record keyed by its reference code. The event
// stream is at-least-once, so redelivered events overwrite the same document
// instead of duplicating it.
func (r *HistoryRepository) Archive(ctx context.Context, record *transaction.Record) error {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"reference_code": record.ReferenceCode}
	update := bson.M{"$set": record}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		r.logger.Error("Failed to archive transaction record",
			"reference_code", record.ReferenceCode,
			"error", err)
		return fmt.Errorf("failed to archive transaction record: %w", err)
	}

	return nil
}

// GetByReferenceCode retrieves an archived record by its reference code
func (r *HistoryRepository) GetByReferenceCode(ctx context.Context, referenceCode string) (*transaction.Record, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"reference_code": referenceCode}
	var record transaction.Record
	err := collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEntryNotFound
		}
		r.logger.Error("Failed to get archived record",
			"reference_code", referenceCode,
			"error", err)
		return nil, fmt.Errorf("failed to get archived record: %w", err)
	}

	return &record, nil
}

// GetByWalletID retrieves paginated archive entries for a wallet.
// Results are sorted by creation time in descending order (newest first).
func (r *HistoryRepository) GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*transaction.Record, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"wallet_id": walletID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get archived records",
			"wallet_id", walletID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*transaction.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode archived records",
			"wallet_id", walletID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode archived records: %w", err)
	}

	return records, nil
}

// CountByWalletID counts the archive entries for a wallet
func (r *HistoryRepository) CountByWalletID(ctx context.Context, walletID uuid.UUID) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"wallet_id": walletID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count archived records",
			"wallet_id", walletID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count archived records: %w", err)
	}

	return count, nil
}

// GetByTimeRange retrieves paginated archive entries within the time window.
// Results are sorted by creation time in descending order for recent-first
// access.
func (r *HistoryRepository) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*transaction.Record, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{
		"created_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get archived records by time range",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to get archived records by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*transaction.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode archived records",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to decode archived records: %w", err)
	}

	return records, nil
}
