package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const balanceKeyPrefix = "wallet:balance:"

// BalanceCache is a Redis read cache for balance views. It is strictly an
// optimization: the engine invalidates entries after every committed
// mutation, and cache errors degrade to a database read, never to a wrong
// answer.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewBalanceCache(logger *slog.Logger, client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached view, or nil on a miss or a cache error
func (c *BalanceCache) Get(ctx context.Context, walletID uuid.UUID) *BalanceView {
	data, err := c.client.Get(ctx, balanceKeyPrefix+walletID.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Balance cache read failed", "wallet_id", walletID.String(), "error", err)
		}
		return nil
	}

	var view BalanceView
	if err := json.Unmarshal(data, &view); err != nil {
		c.logger.Warn("Dropping undecodable balance cache entry", "wallet_id", walletID.String(), "error", err)
		_ = c.client.Del(ctx, balanceKeyPrefix+walletID.String()).Err()
		return nil
	}
	return &view
}

// Set stores the view with the configured TTL. Failures are logged and
// swallowed.
func (c *BalanceCache) Set(ctx context.Context, view *BalanceView) {
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, balanceKeyPrefix+view.WalletID.String(), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Balance cache write failed", "wallet_id", view.WalletID.String(), "error", err)
	}
}

// Invalidate drops the cached view. Implements engine.BalanceInvalidator.
func (c *BalanceCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	return c.client.Del(ctx, balanceKeyPrefix+walletID.String()).Err()
}
