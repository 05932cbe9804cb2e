package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arena-wallet-ledger/internal/api/handler"
	"github.com/arena-wallet-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the wallet server
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	walletHandler *handler.WalletHandler,
	transferHandler *handler.TransferHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Wallet lifecycle and per-wallet money movements
		wallets := v1.Group("/wallets")
		{
			wallets.POST("", walletHandler.Create)
			wallets.GET("/:id", walletHandler.GetBalance)
			wallets.GET("/:id/transactions", walletHandler.GetHistory)
			wallets.PUT("/:id/lock", walletHandler.SetLock)
			wallets.POST("/:id/deposits", walletHandler.Deposit)
			wallets.POST("/:id/withdrawals", walletHandler.Withdraw)
			wallets.POST("/:id/entry-fees", walletHandler.ChargeEntryFee)
		}

		// Transfers between wallets
		v1.POST("/transfers", transferHandler.Create)

		// Transaction lookup by reference code
		v1.GET("/transactions/:reference_code", transferHandler.GetByReferenceCode)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
