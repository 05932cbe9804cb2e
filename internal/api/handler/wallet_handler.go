package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
	"github.com/arena-wallet-ledger/internal/engine"
	"github.com/arena-wallet-ledger/internal/query"
)

// WalletHandler serves wallet lifecycle and money-movement endpoints
type WalletHandler struct {
	engine  *engine.Engine
	queries *query.Service
	logger  *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, eng *engine.Engine, queries *query.Service) *WalletHandler {
	return &WalletHandler{
		engine:  eng,
		queries: queries,
		logger:  logger,
	}
}

// Create handles POST /api/v1/wallets
func (h *WalletHandler) Create(c *gin.Context) {
	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	w, err := h.engine.CreateWallet(c.Request.Context(), req.OwnerID)
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	RespondCreated(c, toWalletResponse(w))
}

// GetBalance handles GET /api/v1/wallets/:id
func (h *WalletHandler) GetBalance(c *gin.Context) {
	walletID, ok := parseWalletID(c)
	if !ok {
		return
	}

	view, err := h.queries.GetBalance(c.Request.Context(), walletID)
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	RespondOK(c, view)
}

// GetHistory handles GET /api/v1/wallets/:id/transactions
func (h *WalletHandler) GetHistory(c *gin.Context) {
	walletID, ok := parseWalletID(c)
	if !ok {
		return
	}

	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := transaction.HistoryFilter{
		Type:   shared.TransactionType(q.Type),
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.From != "" {
		from, err := time.Parse(time.RFC3339, q.From)
		if err != nil {
			RespondBadRequest(c, "Invalid 'from' timestamp, expected RFC3339")
			return
		}
		filter.From = &from
	}
	if q.To != "" {
		to, err := time.Parse(time.RFC3339, q.To)
		if err != nil {
			RespondBadRequest(c, "Invalid 'to' timestamp, expected RFC3339")
			return
		}
		filter.To = &to
	}

	page, err := h.queries.GetHistory(c.Request.Context(), walletID, filter)
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	records := make([]TransactionResponse, 0, len(page.Records))
	for _, rec := range page.Records {
		records = append(records, toTransactionResponse(rec))
	}
	RespondWithPaginatedData(c, http.StatusOK, records, page.Limit, page.Offset, page.Total)
}

// SetLock handles PUT /api/v1/wallets/:id/lock
func (h *WalletHandler) SetLock(c *gin.Context) {
	walletID, ok := parseWalletID(c)
	if !ok {
		return
	}

	var req SetLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	w, err := h.engine.SetLocked(c.Request.Context(), walletID, *req.Locked)
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	RespondOK(c, toWalletResponse(w))
}

// Deposit handles POST /api/v1/wallets/:id/deposits
func (h *WalletHandler) Deposit(c *gin.Context) {
	walletID, ok := parseWalletID(c)
	if !ok {
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.engine.Deposit(c.Request.Context(), walletID, req.Amount, req.ReferenceCode, shared.PaymentMethod(req.PaymentMethod))
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	RespondOK(c, DepositResponse{
		TransactionID: result.TransactionID,
		ReferenceCode: result.ReferenceCode,
		NewBalance:    result.NewBalance,
		Fee:           result.Fee,
	})
}

// Withdraw handles POST /api/v1/wallets/:id/withdrawals
func (h *WalletHandler) Withdraw(c *gin.Context) {
	walletID, ok := parseWalletID(c)
	if !ok {
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.engine.Withdraw(c.Request.Context(), walletID, req.Amount, req.ReferenceCode)
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	RespondOK(c, WithdrawResponse{
		TransactionID: result.TransactionID,
		ReferenceCode: result.ReferenceCode,
		NewBalance:    result.NewBalance,
	})
}

// ChargeEntryFee handles POST /api/v1/wallets/:id/entry-fees
func (h *WalletHandler) ChargeEntryFee(c *gin.Context) {
	walletID, ok := parseWalletID(c)
	if !ok {
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.engine.ChargeEntryFee(c.Request.Context(), walletID, req.Amount, req.ReferenceCode, req.Note)
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	RespondOK(c, WithdrawResponse{
		TransactionID: result.TransactionID,
		ReferenceCode: result.ReferenceCode,
		NewBalance:    result.NewBalance,
	})
}

func parseWalletID(c *gin.Context) (uuid.UUID, bool) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid wallet id")
		return uuid.Nil, false
	}
	return walletID, true
}

// respondOperationError maps engine and domain errors onto HTTP statuses.
// Unknown errors become a plain 500 so internals never leak to clients.
func respondOperationError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidReference),
		errors.Is(err, engine.ErrInvalidPaymentMethod),
		errors.Is(err, engine.ErrSelfTransfer),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrEmptyOwnerID):
		RespondBadRequest(c, err.Error())

	case errors.Is(err, engine.ErrAmountOutOfBounds):
		RespondWithError(c, http.StatusUnprocessableEntity, "AMOUNT_OUT_OF_BOUNDS", err.Error())

	case errors.Is(err, wallet.ErrInsufficientFunds):
		RespondWithError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error())

	case errors.Is(err, wallet.ErrWalletLocked):
		RespondConflict(c, "WALLET_LOCKED", err.Error())

	case errors.Is(err, engine.ErrReferenceInUse):
		RespondConflict(c, "REFERENCE_IN_USE", err.Error())

	case errors.Is(err, wallet.ErrDuplicateOwner{}):
		RespondConflict(c, "WALLET_EXISTS", err.Error())

	case errors.Is(err, engine.ErrPendingExpired):
		RespondConflict(c, "PENDING_EXPIRED", err.Error())

	case errors.Is(err, wallet.ErrWalletNotFound{}),
		errors.Is(err, engine.ErrReceiverNotFound),
		errors.Is(err, engine.ErrOwnerUnknown),
		errors.Is(err, transaction.ErrRecordNotFound{}):
		RespondNotFound(c, err.Error())

	case errors.Is(err, engine.ErrUpstreamPaymentFailed):
		RespondWithError(c, http.StatusBadGateway, "UPSTREAM_PAYMENT_FAILED", err.Error())

	case errors.Is(err, engine.ErrTransientConflict):
		RespondWithError(c, http.StatusServiceUnavailable, "TRANSIENT_CONFLICT", err.Error())

	default:
		logger.Error("Unhandled operation error", "error", err, "path", c.Request.URL.Path)
		RespondInternalError(c)
	}
}
