package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/arena-wallet-ledger/internal/api"
	"github.com/arena-wallet-ledger/internal/config"
	"github.com/arena-wallet-ledger/internal/data/postgres"
	"github.com/arena-wallet-ledger/internal/engine"
	"github.com/arena-wallet-ledger/internal/logger"
	"github.com/arena-wallet-ledger/internal/platform/messaging/producers"
	"github.com/arena-wallet-ledger/internal/platform/persistence"
	"github.com/arena-wallet-ledger/internal/query"
	"github.com/arena-wallet-ledger/internal/reconciler"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("wallet_server")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Wallet Server",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize PostgreSQL, the authoritative store
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize Redis for the balance read cache. Optional: a missing cache
	// degrades reads, it never blocks the ledger.
	var cache *query.BalanceCache
	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, running without balance cache", "error", err)
	} else {
		cache = query.NewBalanceCache(log, redisClient, cfg.Redis.BalanceTTL)
	}

	// Initialize Kafka producer for the transaction event stream
	eventProducer, err := producers.NewTransactionEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka event producer", "error", err)
		os.Exit(1)
	}

	// Wire the ledger engine
	store := postgres.NewStore(log, postgresDB)
	fees := engine.NewFeePolicy(&cfg.Wallet)
	gateway := engine.SimulatedGateway{}
	directory := engine.StaticDirectory{}

	var invalidator engine.BalanceInvalidator
	if cache != nil {
		invalidator = cache
	}
	eng := engine.NewEngine(log, cfg.Wallet, store, fees, gateway, directory, invalidator)

	queries := query.NewService(log, store, cache)

	// Initialize the background loops
	publisher := reconciler.NewPublisher(&cfg.Outbox, store.Stores().Outbox, eventProducer, log)
	sweeper, err := reconciler.NewSweeper(&cfg.Reconciler, eng, store.Stores().Transactions, log)
	if err != nil {
		log.Error("Failed to initialize sweeper", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		publisher.Start(appCtx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Start(appCtx)
	}()

	// Initialize REST server
	server := api.NewServer(log, cfg, eng, queries)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context to stop the background loops
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so no new mutations arrive
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Wait for the publisher and sweeper to finish their current tick
	wg.Wait()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka event producer", "error", err)
	}

	if redisClient != nil {
		if err = redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", "error", err)
		}
	}

	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("Wallet server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Wallet server shutdown completed successfully")
	}
}
