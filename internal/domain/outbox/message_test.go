package outbox

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
)

func TestNewMessage(t *testing.T) {
	balanceAfter := int64(99_500)
	rec := transaction.NewPending("dep-1", uuid.New(), shared.TransactionTypeDeposit, 100_000)
	rec.Status = shared.TransactionStatusCompleted
	rec.Fee = 500
	rec.BalanceAfter = &balanceAfter

	msg, err := NewMessage(rec)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, rec.ReferenceCode, msg.ReferenceCode)
	assert.Equal(t, rec.WalletID, msg.WalletID)
	assert.Equal(t, shared.OutboxStatusPending, msg.Status)
	assert.Equal(t, 0, msg.Attempts)
	assert.Nil(t, msg.LastAttemptAt)

	decoded, err := msg.GetRecord()
	require.NoError(t, err)
	assert.Equal(t, rec.ReferenceCode, decoded.ReferenceCode)
	assert.Equal(t, rec.Amount, decoded.Amount)
	require.NotNil(t, decoded.BalanceAfter)
	assert.Equal(t, balanceAfter, *decoded.BalanceAfter)
}

func TestMessage_IncrementAttempts(t *testing.T) {
	initialTime := time.Now().Add(-time.Hour)
	msg := &Message{
		Attempts:      1,
		LastAttemptAt: &initialTime,
	}

	msg.IncrementAttempts()

	assert.Equal(t, 2, msg.Attempts)
	require.NotNil(t, msg.LastAttemptAt)
	assert.True(t, msg.LastAttemptAt.After(initialTime))
}

func TestMessage_StatusTransitions(t *testing.T) {
	t.Run("MarkAsProcessed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsProcessed()
		assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})

	t.Run("MarkAsFailed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsFailed()
		assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})
}

func TestMessage_GetRecord_InvalidPayload(t *testing.T) {
	msg := &Message{Payload: []byte("not json")}
	rec, err := msg.GetRecord()
	assert.Error(t, err)
	assert.Nil(t, rec)
}
