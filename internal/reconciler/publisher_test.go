package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet-ledger/internal/config"
	"github.com/arena-wallet-ledger/internal/data/memory"
	"github.com/arena-wallet-ledger/internal/domain/outbox"
	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
)

type published struct {
	key   string
	value []byte
}

// fakePublisher records publishes and can be told to fail
type fakePublisher struct {
	published []published
	failWith  error
}

func (f *fakePublisher) Publish(_ context.Context, key string, value []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, published{key: key, value: value})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func outboxConfig() *config.OutboxConfig {
	return &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}
}

func enqueueRecord(t *testing.T, repo outbox.Repository, walletID uuid.UUID, referenceCode string) *outbox.Message {
	t.Helper()
	rec := transaction.NewPending(referenceCode, walletID, shared.TransactionTypeDeposit, 100_000)
	rec.Status = shared.TransactionStatusCompleted
	msg, err := outbox.NewMessage(rec)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), msg))
	return msg
}

func TestPublisher_ProcessPendingMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks processed", func(t *testing.T) {
		repo := memory.NewStore().Stores().Outbox
		producer := &fakePublisher{}
		pub := NewPublisher(outboxConfig(), repo, producer, testLogger())

		walletID := uuid.New()
		msg := enqueueRecord(t, repo, walletID, "dep-1")

		require.NoError(t, pub.processPendingMessages(ctx))

		require.Len(t, producer.published, 1)
		// Keyed by wallet id for per-wallet ordering on the topic
		assert.Equal(t, walletID.String(), producer.published[0].key)

		pending, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		processed, err := repo.GetByReferenceCode(ctx, "dep-1")
		require.NoError(t, err)
		assert.Equal(t, msg.ID, processed.ID)
		assert.Equal(t, shared.OutboxStatusProcessed, processed.Status)
	})

	t.Run("broker failure increments attempts and retries later", func(t *testing.T) {
		repo := memory.NewStore().Stores().Outbox
		producer := &fakePublisher{failWith: errors.New("broker unavailable")}
		pub := NewPublisher(outboxConfig(), repo, producer, testLogger())

		enqueueRecord(t, repo, uuid.New(), "dep-1")

		require.NoError(t, pub.processPendingMessages(ctx))

		msg, err := repo.GetByReferenceCode(ctx, "dep-1")
		require.NoError(t, err)
		assert.Equal(t, shared.OutboxStatusPending, msg.Status)
		assert.Equal(t, 1, msg.Attempts)
	})

	t.Run("message is parked after max attempts", func(t *testing.T) {
		repo := memory.NewStore().Stores().Outbox
		producer := &fakePublisher{failWith: errors.New("broker unavailable")}
		pub := NewPublisher(outboxConfig(), repo, producer, testLogger())

		enqueueRecord(t, repo, uuid.New(), "dep-1")

		for i := 0; i < 3; i++ {
			require.NoError(t, pub.processPendingMessages(ctx))
		}

		msg, err := repo.GetByReferenceCode(ctx, "dep-1")
		require.NoError(t, err)
		assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
		assert.Equal(t, 3, msg.Attempts)

		// Parked messages are no longer polled
		producer.failWith = nil
		require.NoError(t, pub.processPendingMessages(ctx))
		assert.Empty(t, producer.published)
	})

	t.Run("ordering follows commit order", func(t *testing.T) {
		repo := memory.NewStore().Stores().Outbox
		producer := &fakePublisher{}
		pub := NewPublisher(outboxConfig(), repo, producer, testLogger())

		walletID := uuid.New()
		enqueueRecord(t, repo, walletID, "dep-1")
		enqueueRecord(t, repo, walletID, "dep-2")
		enqueueRecord(t, repo, walletID, "dep-3")

		require.NoError(t, pub.processPendingMessages(ctx))

		require.Len(t, producer.published, 3)
		for i, want := range []string{"dep-1", "dep-2", "dep-3"} {
			rec := transaction.Record{}
			require.NoError(t, json.Unmarshal(producer.published[i].value, &rec))
			assert.Equal(t, want, rec.ReferenceCode)
		}
	})
}
