package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/arena-wallet-ledger/internal/config"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/engine"
)

// Sweeper fails PENDING records older than the configured timeout. Such
// records belong to operations interrupted before their effects committed
// (a crash, or a deposit whose gateway confirmation never resolved), so
// failing them is always safe: PENDING means no balance was touched.
type Sweeper struct {
	engine       *engine.Engine
	transactions transaction.Repository
	logger       *slog.Logger
	interval     time.Duration
	batchSize    int
	pool         *ants.Pool
}

func NewSweeper(
	cfg *config.ReconcilerConfig,
	eng *engine.Engine,
	transactions transaction.Repository,
	logger *slog.Logger,
) (*Sweeper, error) {
	pool, err := ants.NewPool(cfg.WorkerPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweeper worker pool: %w", err)
	}

	return &Sweeper{
		engine:       eng,
		transactions: transactions,
		logger:       logger,
		interval:     cfg.SweepInterval,
		batchSize:    cfg.BatchSize,
		pool:         pool,
	}, nil
}

// Start sweeps on the configured interval until the context is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting pending-transaction sweeper",
		"sweep_interval", s.interval.String(),
		"batch_size", s.batchSize,
		"pending_timeout", s.engine.PendingTimeout().String(),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopping due to context cancellation.")
			s.pool.Release()
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("Sweep failed", "error", err)
			}
		}
	}
}

// Sweep resolves one batch of stuck records, fanning the work out over the
// pool. Each record is failed independently; one bad record never blocks the
// rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.engine.PendingTimeout())
	records, err := s.transactions.ListPendingBefore(ctx, cutoff, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list stuck pending records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	s.logger.Info("Sweeping stuck pending records", "count", len(records), "cutoff", cutoff)

	var wg sync.WaitGroup
	for _, rec := range records {
		rec := rec
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			expired, err := s.engine.ExpirePending(ctx, rec.ReferenceCode)
			if err != nil {
				s.logger.Error("Failed to expire pending record",
					"reference_code", rec.ReferenceCode, "error", err)
				return
			}
			if !expired {
				// Finalized between listing and expiry, nothing to do
				s.logger.Debug("Pending record resolved before expiry",
					"reference_code", rec.ReferenceCode)
			}
		})
		if submitErr != nil {
			wg.Done()
			s.logger.Error("Failed to submit sweep task", "reference_code", rec.ReferenceCode, "error", submitErr)
		}
	}
	wg.Wait()

	return nil
}
