// Package archiver consumes finalized transaction events from Kafka and
// projects them into the MongoDB history archive. It is a pure downstream
// consumer: it never touches wallet balances or the PostgreSQL log.
package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/platform/messaging/producers"
)

// HistoryArchiver is the archive write surface, implemented by the MongoDB
// history repository.
type HistoryArchiver interface {
	Archive(ctx context.Context, record *transaction.Record) error
}

// EventHandler handles transaction event messages from Kafka
type EventHandler struct {
	history  HistoryArchiver
	producer producers.DeadLetterPublisher
	logger   *slog.Logger
}

// NewEventHandler creates a new handler
func NewEventHandler(
	logger *slog.Logger,
	history HistoryArchiver,
	producer producers.DeadLetterPublisher,
) *EventHandler {
	return &EventHandler{
		history:  history,
		producer: producer,
		logger:   logger,
	}
}

// HandleMessage archives one finalized transaction record. Archiving is an
// upsert keyed by reference code, so redelivered events are harmless.
func (h *EventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var record transaction.Record
	if err := json.Unmarshal(value, &record); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal transaction record from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if record.CorrelationID != "" {
		logger = h.logger.With("correlation_id", record.CorrelationID)
	}

	if !record.Status.IsFinal() {
		// The outbox only carries finalized records; anything else is a
		// producer bug worth surfacing, not retrying.
		logger.Warn("Skipping non-final record on event stream",
			"reference_code", record.ReferenceCode,
			"status", string(record.Status),
		)
		return nil
	}

	if err := h.history.Archive(ctx, &record); err != nil {
		logger.Error("Failed to archive transaction record",
			"reference_code", record.ReferenceCode,
			"wallet_id", record.WalletID.String(),
			"error", err,
		)
		return fmt.Errorf("archiving record %s failed: %w", record.ReferenceCode, err)
	}

	logger.Debug("Archived transaction record",
		"reference_code", record.ReferenceCode,
		"wallet_id", record.WalletID.String(),
		"type", string(record.Type),
		"status", string(record.Status),
	)
	return nil
}
