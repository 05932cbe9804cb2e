package producers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/arena-wallet-ledger/internal/config"
)

// TransactionEventProducer publishes finalized transaction events from the
// outbox to Kafka. Writes are synchronous with full acks: the outbox publisher
// only deletes a row once the broker has confirmed the event, so the stream is
// at-least-once.
type TransactionEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewTransactionEventProducer creates the event producer and ensures the
// topic exists.
func NewTransactionEventProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*TransactionEventProducer, error) {
	if cfg.EventTopic == "" {
		return nil, fmt.Errorf("kafka event topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.EventTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure event topic %s exists: %w", cfg.EventTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &TransactionEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventTopic,
	}, nil
}

// Publish writes one event keyed by the wallet id so a wallet's events stay
// ordered within a partition. The value is the outbox payload, already the
// serialized finalized record.
func (p *TransactionEventProducer) Publish(ctx context.Context, key string, value []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish transaction event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish transaction event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published transaction event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *TransactionEventProducer) Close() error {
	p.logger.Info("Closing transaction event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
