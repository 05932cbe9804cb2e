// Package query serves the read side of the wallet ledger: balances and
// transaction history. It never mutates state; mutations go through the
// engine.
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
	"github.com/arena-wallet-ledger/internal/engine"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// BalanceView is the balance snapshot returned to callers
type BalanceView struct {
	WalletID       uuid.UUID `json:"wallet_id"`
	OwnerID        string    `json:"owner_id"`
	Balance        int64     `json:"balance"`
	TotalReceived  int64     `json:"total_received"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	Locked         bool      `json:"locked"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HistoryPage is one page of a wallet's transaction history
type HistoryPage struct {
	Records []*transaction.Record `json:"records"`
	Total   int64                 `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// Service answers balance and history queries, with a Redis read-through
// cache in front of the balance lookup.
type Service struct {
	store  engine.Store
	cache  *BalanceCache // optional
	logger *slog.Logger
}

func NewService(logger *slog.Logger, store engine.Store, cache *BalanceCache) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// GetBalance returns the wallet's balance view, from cache when possible.
// The cache is invalidated on every committed mutation, so a hit is only ever
// one committed state behind under concurrent writes, never stale beyond the
// TTL.
func (s *Service) GetBalance(ctx context.Context, walletID uuid.UUID) (*BalanceView, error) {
	if s.cache != nil {
		if view := s.cache.Get(ctx, walletID); view != nil {
			return view, nil
		}
	}

	w, err := s.store.Stores().Wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}

	view := &BalanceView{
		WalletID:       w.ID,
		OwnerID:        w.OwnerID,
		Balance:        w.Balance,
		TotalReceived:  w.TotalReceived,
		TotalWithdrawn: w.TotalWithdrawn,
		Locked:         w.Locked,
		UpdatedAt:      w.UpdatedAt,
	}
	if s.cache != nil {
		s.cache.Set(ctx, view)
	}
	return view, nil
}

// GetBalanceByOwner resolves the owner's wallet and returns its balance view
func (s *Service) GetBalanceByOwner(ctx context.Context, ownerID string) (*BalanceView, error) {
	w, err := s.store.Stores().Wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, wallet.ErrWalletNotFound{}
	}
	return s.GetBalance(ctx, w.ID)
}

// GetHistory returns one page of the wallet's transaction log, newest first.
// The wallet must exist; an unknown id is an error rather than an empty page.
func (s *Service) GetHistory(ctx context.Context, walletID uuid.UUID, filter transaction.HistoryFilter) (*HistoryPage, error) {
	if _, err := s.store.Stores().Wallets.GetByID(ctx, walletID); err != nil {
		return nil, err
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, err := s.store.Stores().Transactions.ListByWallet(ctx, walletID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Stores().Transactions.CountByWallet(ctx, walletID, filter)
	if err != nil {
		return nil, err
	}

	return &HistoryPage{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// GetTransaction returns a single record by its reference code
func (s *Service) GetTransaction(ctx context.Context, referenceCode string) (*transaction.Record, error) {
	rec, err := s.store.Stores().Transactions.GetByReferenceCode(ctx, referenceCode)
	if err != nil {
		if errors.Is(err, transaction.ErrRecordNotFound{}) {
			return nil, err
		}
		s.logger.Error("Failed to load transaction record", "reference_code", referenceCode, "error", err)
		return nil, err
	}
	return rec, nil
}
