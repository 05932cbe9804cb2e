package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
)

// Message stores a finalized transaction record for reliable event publishing.
// It is written in the same database transaction that finalizes the record, so
// downstream consumers only ever see committed ledger state.
type Message struct {
	ID            int64               `json:"id"`
	ReferenceCode string              `json:"reference_code"`
	WalletID      uuid.UUID           `json:"wallet_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(record *transaction.Record) (*Message, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	return &Message{
		ReferenceCode: record.ReferenceCode,
		WalletID:      record.WalletID,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetRecord extracts the transaction record from the payload
func (m *Message) GetRecord() (*transaction.Record, error) {
	var record transaction.Record
	if err := json.Unmarshal(m.Payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
