// Package reconciler contains the two background loops that keep the ledger
// converged: the outbox publisher pushes committed transaction events to
// Kafka, and the sweeper resolves PENDING records stranded by a crash.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arena-wallet-ledger/internal/config"
	"github.com/arena-wallet-ledger/internal/domain/outbox"
	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/platform/messaging/producers"
)

// Publisher drains the transactional outbox into the Kafka event stream.
// Delivery is at-least-once: a message is marked PROCESSED only after the
// broker acknowledges it, so consumers must dedupe on reference code.
type Publisher struct {
	outboxRepo       outbox.Repository
	producer         producers.MessagePublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPublisher(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) *Publisher {
	return &Publisher{
		outboxRepo:       outboxRepo,
		producer:         producer,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until the context is canceled
func (p *Publisher) Start(ctx context.Context) {
	p.logger.Info("Starting outbox publisher",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Publisher) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		logger := p.logger.With("outbox_id", msg.ID, "reference_code", msg.ReferenceCode)

		var rec transaction.Record
		if err := json.Unmarshal(msg.Payload, &rec); err == nil && rec.CorrelationID != "" {
			logger = logger.With("correlation_id", rec.CorrelationID)
		}

		// Key by wallet id so each wallet's events land on one partition
		if err := p.producer.Publish(ctx, msg.WalletID.String(), msg.Payload); err != nil {
			logger.Error("Failed to publish outbox message", "current_attempts", msg.Attempts, "error", err)

			if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				logger.Error("Failed to increment attempts for outbox message", "error", errInc)
				continue
			}

			if msg.Attempts+1 >= p.maxRetryAttempts {
				logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
					"attempts_made", msg.Attempts+1,
				)
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
					logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", errUpdate)
				}
			}
			continue
		}

		if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusProcessed); err != nil {
			// The event went out but the mark failed; the message will be
			// republished next tick, which consumers tolerate.
			logger.Error("Published event but failed to mark outbox message as PROCESSED", "error", err)
			continue
		}

		logger.Debug("Published outbox message")
	}
	return nil
}
