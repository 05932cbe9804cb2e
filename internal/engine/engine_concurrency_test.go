package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
	"github.com/arena-wallet-ledger/internal/engine"
)

// A hundred transfers of 100 against a balance of exactly 10000 must all
// succeed, drain the sender to zero, and conserve the total. The next
// transfer must fail cleanly.
func TestEngine_ConcurrentTransfersDrainExactBalance(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, engine.SimulatedGateway{})
	from := mustCreateWallet(t, eng, "sender")
	to := mustCreateWallet(t, eng, "receiver")
	fund(t, store, from.ID, 10_000)

	const workers = 100
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Transfer(ctx, from.ID, to.ID, 100, fmt.Sprintf("drain-%d", i), "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "transfer %d", i)
	}

	assert.Equal(t, int64(0), balanceOf(t, store, from.ID))
	assert.Equal(t, int64(10_000), balanceOf(t, store, to.ID))

	_, err := eng.Transfer(ctx, from.ID, to.ID, 100, "drain-overflow", "")
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
}

// Concurrent calls with the same reference code must apply the balance effect
// exactly once and hand every caller the same result.
func TestEngine_ConcurrentSameReferenceDeposit(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, engine.SimulatedGateway{})
	w := mustCreateWallet(t, eng, "player-1")

	const callers = 8
	results := make([]*engine.DepositResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = eng.Deposit(ctx, w.ID, 100_000, "dep-race", shared.PaymentMethodCard)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.Equal(t, int64(99_500), results[i].NewBalance, "caller %d", i)
		assert.Equal(t, int64(500), results[i].Fee, "caller %d", i)
		assert.Equal(t, results[0].TransactionID, results[i].TransactionID, "caller %d", i)
	}

	assert.Equal(t, int64(99_500), balanceOf(t, store, w.ID))

	rec := recordFor(t, store, "dep-race")
	assert.Equal(t, shared.TransactionStatusCompleted, rec.Status)
}

// Mixed deposits and withdrawals interleaved across wallets must never lose
// an update: the final balances equal the arithmetic sum of the effects.
func TestEngine_ConcurrentMixedOperations(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, engine.SimulatedGateway{})
	a := mustCreateWallet(t, eng, "player-a")
	b := mustCreateWallet(t, eng, "player-b")
	fund(t, store, a.ID, 1_000_000)
	fund(t, store, b.ID, 1_000_000)

	const rounds = 25
	var wg sync.WaitGroup
	errCh := make(chan error, rounds*3)

	for i := 0; i < rounds; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			// 50_000 in, 250 fee
			_, err := eng.Deposit(ctx, a.ID, 50_000, fmt.Sprintf("mix-dep-%d", i), shared.PaymentMethodBankTransfer)
			errCh <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := eng.Withdraw(ctx, b.ID, 10_000, fmt.Sprintf("mix-wd-%d", i))
			errCh <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := eng.Transfer(ctx, a.ID, b.ID, 5_000, fmt.Sprintf("mix-tr-%d", i), "")
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	// a: +25 * (50_000 - 250) - 25 * 5_000
	assert.Equal(t, int64(1_000_000+25*49_750-25*5_000), balanceOf(t, store, a.ID))
	// b: -25 * 10_000 + 25 * 5_000
	assert.Equal(t, int64(1_000_000-25*10_000+25*5_000), balanceOf(t, store, b.ID))
}
