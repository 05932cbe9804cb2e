// Package config provides configuration structures and validation for the
// wallet ledger. It handles environment-based configuration for all major
// components including the HTTP server, databases, message queues, the fee
// policy, and the reconciler.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Each field represents a
// major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Wallet      WalletConfig
	Outbox      OutboxConfig
	Reconciler  ReconcilerConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration for the history archive
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig contains Kafka configuration for the transaction event stream
type KafkaConfig struct {
	Brokers           string
	EventTopic        string // Topic carrying finalized transaction events
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	DLQTopic          string // Topic for events the archiver cannot process
}

// RedisConfig contains Redis configuration for the balance read cache
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	BalanceTTL time.Duration // Expiry for cached balances
}

// WalletConfig contains ledger business parameters
type WalletConfig struct {
	MinTopUp       int64         // Smallest accepted deposit, minor units
	MaxTopUp       int64         // Largest accepted deposit, minor units
	DepositFeeBps  int64         // Deposit fee in basis points of the amount
	DepositFeeCap  int64         // Upper bound on the deposit fee, minor units
	PendingTimeout time.Duration // Age after which a stuck PENDING record is failed
	MaxRetries     int           // Bounded retries on optimistic-lock conflicts
}

// OutboxConfig contains outbox publishing configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// ReconcilerConfig contains the stuck-pending sweeper configuration
type ReconcilerConfig struct {
	SweepInterval time.Duration // How often the sweeper scans for stuck records
	BatchSize     int           // Maximum records resolved per sweep
	WorkerPool    int           // Parallelism of a single sweep
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.EventTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_EVENT_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}
	if c.Redis.BalanceTTL <= 0 {
		validationErrors = append(validationErrors, "REDIS_BALANCE_TTL must be greater than 0")
	}

	// Validate Wallet config
	if c.Wallet.MinTopUp <= 0 {
		validationErrors = append(validationErrors, "WALLET_MIN_TOPUP must be greater than 0")
	}
	if c.Wallet.MaxTopUp < c.Wallet.MinTopUp {
		validationErrors = append(validationErrors, "WALLET_MAX_TOPUP must be greater than or equal to WALLET_MIN_TOPUP")
	}
	if c.Wallet.DepositFeeBps < 0 {
		validationErrors = append(validationErrors, "WALLET_DEPOSIT_FEE_BPS must not be negative")
	}
	if c.Wallet.DepositFeeBps >= 10000 {
		validationErrors = append(validationErrors, "WALLET_DEPOSIT_FEE_BPS must be less than 10000")
	}
	if c.Wallet.DepositFeeCap < 0 {
		validationErrors = append(validationErrors, "WALLET_DEPOSIT_FEE_CAP must not be negative")
	}
	if c.Wallet.PendingTimeout <= 0 {
		validationErrors = append(validationErrors, "WALLET_PENDING_TIMEOUT must be greater than 0")
	}
	if c.Wallet.MaxRetries <= 0 {
		validationErrors = append(validationErrors, "WALLET_MAX_RETRIES must be greater than 0")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	// Validate Reconciler config
	if c.Reconciler.SweepInterval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_SWEEP_INTERVAL must be greater than 0")
	}
	if c.Reconciler.BatchSize <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_BATCH_SIZE must be greater than 0")
	}
	if c.Reconciler.WorkerPool <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_WORKER_POOL must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New("configuration validation failed:\n" + strings.Join(validationErrors, "\n"))
	}

	return nil
}
