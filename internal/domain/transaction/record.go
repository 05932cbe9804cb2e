package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/domain/shared"
)

// TransferInSuffix extends a transfer's reference code for the receiving leg,
// keeping both legs recoverable from the caller-supplied code.
const TransferInSuffix = ":in"

// Record is one row of the append-only transaction log. It doubles as the
// idempotency anchor: the record is written PENDING before any balance is
// touched, and balance effects commit atomically with the flip to COMPLETED.
type Record struct {
	ID                   int64                    `json:"id" bson:"id"`
	ReferenceCode        string                   `json:"reference_code" bson:"reference_code"`
	WalletID             uuid.UUID                `json:"wallet_id" bson:"wallet_id"`
	CounterpartyWalletID *uuid.UUID               `json:"counterparty_wallet_id,omitempty" bson:"counterparty_wallet_id,omitempty"`
	Type                 shared.TransactionType   `json:"type" bson:"type"`
	Amount               int64                    `json:"amount" bson:"amount"`
	Fee                  int64                    `json:"fee" bson:"fee"`
	FeePolicyVersion     int                      `json:"fee_policy_version" bson:"fee_policy_version"`
	Status               shared.TransactionStatus `json:"status" bson:"status"`
	FailureReason        string                   `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	BalanceAfter         *int64                   `json:"balance_after,omitempty" bson:"balance_after,omitempty"`
	Note                 string                   `json:"note,omitempty" bson:"note,omitempty"`
	PaymentMethod        shared.PaymentMethod     `json:"payment_method,omitempty" bson:"payment_method,omitempty"`
	PaymentRef           string                   `json:"payment_ref,omitempty" bson:"payment_ref,omitempty"`
	CorrelationID        string                   `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt            time.Time                `json:"created_at" bson:"created_at"`
	CompletedAt          *time.Time               `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// NewPending builds a PENDING record for the given operation
func NewPending(referenceCode string, walletID uuid.UUID, txType shared.TransactionType, amount int64) *Record {
	return &Record{
		ReferenceCode: referenceCode,
		WalletID:      walletID,
		Type:          txType,
		Amount:        amount,
		Status:        shared.TransactionStatusPending,
		CorrelationID: referenceCode,
		CreatedAt:     time.Now(),
	}
}

// Delta is the signed balance effect of the record once completed
func (r *Record) Delta() int64 {
	net := r.Amount - r.Fee
	if r.Type.IsDebit() {
		return -r.Amount
	}
	return net
}
