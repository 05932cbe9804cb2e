package shared

// TransactionType defines the money movements the ledger records
type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal     TransactionType = "WITHDRAWAL"
	TransactionTypeTransferOut    TransactionType = "TRANSFER_OUT"
	TransactionTypeTransferIn     TransactionType = "TRANSFER_IN"
	TransactionTypeEntryFeeCharge TransactionType = "ENTRY_FEE_CHARGE"
)

// IsDebit reports whether the type reduces the wallet balance
func (t TransactionType) IsDebit() bool {
	switch t {
	case TransactionTypeWithdrawal, TransactionTypeTransferOut, TransactionTypeEntryFeeCharge:
		return true
	}
	return false
}

// TransactionStatus defines transaction processing states.
// A record is immutable once it reaches COMPLETED or FAILED.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsFinal reports whether the status is terminal
func (s TransactionStatus) IsFinal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// FailureReason defines transaction failure categories
type FailureReason string

const (
	FailureReasonInvalidAmount     FailureReason = "INVALID_AMOUNT"
	FailureReasonAccountLocked     FailureReason = "ACCOUNT_LOCKED"
	FailureReasonInsufficientFunds FailureReason = "INSUFFICIENT_FUNDS"
	FailureReasonReceiverNotFound  FailureReason = "RECEIVER_NOT_FOUND"
	FailureReasonUpstreamPayment   FailureReason = "UPSTREAM_PAYMENT_FAILED"
	FailureReasonPendingTimeout    FailureReason = "PENDING_TIMEOUT"
	FailureReasonUnknownError      FailureReason = "UNKNOWN_ERROR"
)

// PaymentMethod identifies the upstream funding channel for a deposit
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodEWallet      PaymentMethod = "E_WALLET"
)

// Valid reports whether the payment method is one the gateway understands
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodEWallet:
		return true
	}
	return false
}

// OutboxStatus defines event publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
