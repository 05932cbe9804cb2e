package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet-ledger/internal/data/memory"
	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedWallet(t *testing.T, store *memory.Store, ownerID string, balance int64) *wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWallet(ownerID)
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, w.Credit(balance))
	}
	require.NoError(t, store.Stores().Wallets.Create(context.Background(), w))
	return w
}

func newCachedService(t *testing.T) (*Service, *memory.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.NewStore()
	cache := NewBalanceCache(testLogger(), client, time.Minute)
	return NewService(testLogger(), store, cache), store, mr
}

func TestService_GetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("miss reads the store and fills the cache", func(t *testing.T) {
		svc, store, mr := newCachedService(t)
		w := seedWallet(t, store, "player-1", 10_000)

		view, err := svc.GetBalance(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10_000), view.Balance)
		assert.Equal(t, "player-1", view.OwnerID)
		assert.True(t, mr.Exists(balanceKeyPrefix+w.ID.String()))
	})

	t.Run("hit skips the store until invalidated", func(t *testing.T) {
		svc, store, _ := newCachedService(t)
		w := seedWallet(t, store, "player-1", 10_000)

		_, err := svc.GetBalance(ctx, w.ID)
		require.NoError(t, err)

		// Mutate behind the cache's back
		fresh, err := store.Stores().Wallets.GetByID(ctx, w.ID)
		require.NoError(t, err)
		require.NoError(t, fresh.Credit(5_000))
		require.NoError(t, store.Stores().Wallets.Update(ctx, fresh))

		stale, err := svc.GetBalance(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10_000), stale.Balance)

		require.NoError(t, svc.cache.Invalidate(ctx, w.ID))

		current, err := svc.GetBalance(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(15_000), current.Balance)
	})

	t.Run("unknown wallet", func(t *testing.T) {
		svc, _, _ := newCachedService(t)

		_, err := svc.GetBalance(ctx, uuid.New())
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound{})
	})

	t.Run("works without a cache", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewService(testLogger(), store, nil)
		w := seedWallet(t, store, "player-1", 7_500)

		view, err := svc.GetBalance(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(7_500), view.Balance)
	})

	t.Run("undecodable cache entry degrades to a store read", func(t *testing.T) {
		svc, store, mr := newCachedService(t)
		w := seedWallet(t, store, "player-1", 10_000)
		require.NoError(t, mr.Set(balanceKeyPrefix+w.ID.String(), "not json"))

		view, err := svc.GetBalance(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10_000), view.Balance)
	})
}

func TestService_GetBalanceByOwner(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newCachedService(t)
	w := seedWallet(t, store, "player-1", 3_000)

	view, err := svc.GetBalanceByOwner(ctx, "player-1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, view.WalletID)

	_, err = svc.GetBalanceByOwner(ctx, "nobody")
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound{})
}

func TestService_GetHistory(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newCachedService(t)
	w := seedWallet(t, store, "player-1", 0)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		rec := transaction.NewPending(fmt.Sprintf("dep-%d", i), w.ID, shared.TransactionTypeDeposit, 10_000)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Stores().Transactions.Create(ctx, rec))
	}

	t.Run("default page size", func(t *testing.T) {
		page, err := svc.GetHistory(ctx, w.ID, transaction.HistoryFilter{})
		require.NoError(t, err)
		assert.Len(t, page.Records, defaultHistoryLimit)
		assert.Equal(t, int64(25), page.Total)
		assert.Equal(t, defaultHistoryLimit, page.Limit)

		// Newest first
		assert.Equal(t, "dep-24", page.Records[0].ReferenceCode)
	})

	t.Run("limit is clamped", func(t *testing.T) {
		page, err := svc.GetHistory(ctx, w.ID, transaction.HistoryFilter{Limit: 10_000})
		require.NoError(t, err)
		assert.Equal(t, maxHistoryLimit, page.Limit)
		assert.Len(t, page.Records, 25)
	})

	t.Run("offset pages through", func(t *testing.T) {
		page, err := svc.GetHistory(ctx, w.ID, transaction.HistoryFilter{Limit: 10, Offset: 20})
		require.NoError(t, err)
		assert.Len(t, page.Records, 5)
		assert.Equal(t, "dep-4", page.Records[0].ReferenceCode)
	})

	t.Run("unknown wallet is an error, not an empty page", func(t *testing.T) {
		_, err := svc.GetHistory(ctx, uuid.New(), transaction.HistoryFilter{})
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound{})
	})
}

func TestService_GetTransaction(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newCachedService(t)
	w := seedWallet(t, store, "player-1", 0)

	rec := transaction.NewPending("dep-1", w.ID, shared.TransactionTypeDeposit, 10_000)
	require.NoError(t, store.Stores().Transactions.Create(ctx, rec))

	found, err := svc.GetTransaction(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	_, err = svc.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, transaction.ErrRecordNotFound{})
}
