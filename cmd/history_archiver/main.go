package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arena-wallet-ledger/internal/archiver"
	"github.com/arena-wallet-ledger/internal/config"
	"github.com/arena-wallet-ledger/internal/data/mongo"
	"github.com/arena-wallet-ledger/internal/logger"
	"github.com/arena-wallet-ledger/internal/platform/messaging/consumers"
	"github.com/arena-wallet-ledger/internal/platform/messaging/producers"
	"github.com/arena-wallet-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("history_archiver")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting History Archiver",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize MongoDB, the archive projection store
	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer. May be nil when DLQTopic is not
	// configured; the handler is nil-safe.
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize event handler
	eventHandler := archiver.NewEventHandler(log, historyRepo, dlqProducer)

	// Subscribe to the transaction event stream
	if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.EventTopic, cfg.Kafka.ConsumerGroup, eventHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to event topic", "error", err)
		os.Exit(1)
	}

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context to stop the consumer loop
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ producer", "error", err)
		}
	}

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	log.Info("History archiver shutdown completed")
}
