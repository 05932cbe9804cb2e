package handler

import (
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
)

// CreateWalletRequest represents a request to provision a wallet
type CreateWalletRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
}

// WalletResponse represents a wallet in API responses
type WalletResponse struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	Balance        int64  `json:"balance"`
	TotalReceived  int64  `json:"total_received"`
	TotalWithdrawn int64  `json:"total_withdrawn"`
	Locked         bool   `json:"locked"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toWalletResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		ID:             w.ID.String(),
		OwnerID:        w.OwnerID,
		Balance:        w.Balance,
		TotalReceived:  w.TotalReceived,
		TotalWithdrawn: w.TotalWithdrawn,
		Locked:         w.Locked,
		CreatedAt:      w.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:      w.UpdatedAt.UTC().Format(timeFormat),
	}
}

// DepositRequest represents a deposit into a wallet
type DepositRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	ReferenceCode string `json:"reference_code" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=BANK_TRANSFER CARD E_WALLET"`
}

// DepositResponse represents a completed or replayed deposit
type DepositResponse struct {
	TransactionID int64  `json:"transaction_id"`
	ReferenceCode string `json:"reference_code"`
	NewBalance    int64  `json:"new_balance"`
	Fee           int64  `json:"fee"`
}

// WithdrawRequest represents a withdrawal or an entry-fee charge
type WithdrawRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	ReferenceCode string `json:"reference_code" binding:"required"`
	Note          string `json:"note,omitempty"`
}

// WithdrawResponse represents a completed or replayed debit
type WithdrawResponse struct {
	TransactionID int64  `json:"transaction_id"`
	ReferenceCode string `json:"reference_code"`
	NewBalance    int64  `json:"new_balance"`
}

// TransferRequest represents a wallet-to-wallet transfer
type TransferRequest struct {
	FromWalletID  string `json:"from_wallet_id" binding:"required,uuid"`
	ToWalletID    string `json:"to_wallet_id" binding:"required,uuid"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	ReferenceCode string `json:"reference_code" binding:"required"`
	Note          string `json:"note,omitempty"`
}

// TransferResponse represents a completed or replayed transfer
type TransferResponse struct {
	TransactionID int64  `json:"transaction_id"`
	ReferenceCode string `json:"reference_code"`
	FromBalance   int64  `json:"from_balance"`
	ToBalance     int64  `json:"to_balance"`
}

// SetLockRequest freezes or unfreezes a wallet
type SetLockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// TransactionResponse represents a transaction record in API responses
type TransactionResponse struct {
	ID                   int64  `json:"id"`
	ReferenceCode        string `json:"reference_code"`
	WalletID             string `json:"wallet_id"`
	CounterpartyWalletID string `json:"counterparty_wallet_id,omitempty"`
	Type                 string `json:"type"`
	Amount               int64  `json:"amount"`
	Fee                  int64  `json:"fee"`
	Status               string `json:"status"`
	FailureReason        string `json:"failure_reason,omitempty"`
	BalanceAfter         *int64 `json:"balance_after,omitempty"`
	Note                 string `json:"note,omitempty"`
	PaymentMethod        string `json:"payment_method,omitempty"`
	CorrelationID        string `json:"correlation_id,omitempty"`
	CreatedAt            string `json:"created_at"`
	CompletedAt          string `json:"completed_at,omitempty"`
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func toTransactionResponse(rec *transaction.Record) TransactionResponse {
	resp := TransactionResponse{
		ID:            rec.ID,
		ReferenceCode: rec.ReferenceCode,
		WalletID:      rec.WalletID.String(),
		Type:          string(rec.Type),
		Amount:        rec.Amount,
		Fee:           rec.Fee,
		Status:        string(rec.Status),
		FailureReason: rec.FailureReason,
		BalanceAfter:  rec.BalanceAfter,
		Note:          rec.Note,
		PaymentMethod: string(rec.PaymentMethod),
		CorrelationID: rec.CorrelationID,
		CreatedAt:     rec.CreatedAt.UTC().Format(timeFormat),
	}
	if rec.CounterpartyWalletID != nil {
		resp.CounterpartyWalletID = rec.CounterpartyWalletID.String()
	}
	if rec.CompletedAt != nil {
		resp.CompletedAt = rec.CompletedAt.UTC().Format(timeFormat)
	}
	return resp
}

// HistoryQuery represents history filter parameters
type HistoryQuery struct {
	Type   string `form:"type" binding:"omitempty,oneof=DEPOSIT WITHDRAWAL TRANSFER_OUT TRANSFER_IN ENTRY_FEE_CHARGE"`
	From   string `form:"from"`
	To     string `form:"to"`
	Limit  int    `form:"limit,default=20" binding:"min=0,max=100"`
	Offset int    `form:"offset,default=0" binding:"min=0"`
}
