package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/engine"
	"github.com/arena-wallet-ledger/internal/query"
)

// TransferHandler serves transfer and transaction-lookup endpoints
type TransferHandler struct {
	engine  *engine.Engine
	queries *query.Service
	logger  *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, eng *engine.Engine, queries *query.Service) *TransferHandler {
	return &TransferHandler{
		engine:  eng,
		queries: queries,
		logger:  logger,
	}
}

// Create handles POST /api/v1/transfers
func (h *TransferHandler) Create(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	fromID, err := uuid.Parse(req.FromWalletID)
	if err != nil {
		RespondBadRequest(c, "Invalid from_wallet_id")
		return
	}
	toID, err := uuid.Parse(req.ToWalletID)
	if err != nil {
		RespondBadRequest(c, "Invalid to_wallet_id")
		return
	}

	result, err := h.engine.Transfer(c.Request.Context(), fromID, toID, req.Amount, req.ReferenceCode, req.Note)
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	RespondOK(c, TransferResponse{
		TransactionID: result.TransactionID,
		ReferenceCode: result.ReferenceCode,
		FromBalance:   result.FromBalance,
		ToBalance:     result.ToBalance,
	})
}

// GetByReferenceCode handles GET /api/v1/transactions/:reference_code
func (h *TransferHandler) GetByReferenceCode(c *gin.Context) {
	referenceCode := c.Param("reference_code")
	if referenceCode == "" {
		RespondBadRequest(c, "Reference code is required")
		return
	}

	rec, err := h.queries.GetTransaction(c.Request.Context(), referenceCode)
	if err != nil {
		respondOperationError(c, h.logger, err)
		return
	}

	RespondOK(c, toTransactionResponse(rec))
}
