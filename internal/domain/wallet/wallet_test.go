package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		w, err := NewWallet("player-42")
		require.NoError(t, err)
		assert.Equal(t, "player-42", w.OwnerID)
		assert.Equal(t, int64(0), w.Balance)
		assert.Equal(t, 1, w.Version)
		assert.False(t, w.Locked)
	})

	t.Run("empty owner", func(t *testing.T) {
		w, err := NewWallet("")
		assert.Nil(t, w)
		assert.ErrorIs(t, err, ErrEmptyOwnerID)
	})
}

func TestWallet_Credit(t *testing.T) {
	w, err := NewWallet("player-1")
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		err := w.Credit(5000)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), w.Balance)
		assert.Equal(t, int64(5000), w.TotalReceived)
		assert.Equal(t, 2, w.Version)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		assert.ErrorIs(t, w.Credit(0), ErrInvalidAmount)
		assert.ErrorIs(t, w.Credit(-10), ErrInvalidAmount)
	})

	t.Run("locked wallet rejects credit", func(t *testing.T) {
		w.SetLocked(true)
		assert.ErrorIs(t, w.Credit(100), ErrWalletLocked)
		w.SetLocked(false)
	})
}

func TestWallet_Debit(t *testing.T) {
	w, err := NewWallet("player-2")
	require.NoError(t, err)
	require.NoError(t, w.Credit(10000))

	t.Run("success", func(t *testing.T) {
		err := w.Debit(4000)
		require.NoError(t, err)
		assert.Equal(t, int64(6000), w.Balance)
		assert.Equal(t, int64(4000), w.TotalWithdrawn)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		err := w.Debit(6001)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, int64(6000), w.Balance)
	})

	t.Run("exact balance is allowed", func(t *testing.T) {
		require.NoError(t, w.Debit(6000))
		assert.Equal(t, int64(0), w.Balance)
	})

	t.Run("locked wallet rejects debit", func(t *testing.T) {
		require.NoError(t, w.Credit(100))
		w.SetLocked(true)
		assert.ErrorIs(t, w.Debit(50), ErrWalletLocked)
	})
}

func TestWallet_SetLocked(t *testing.T) {
	w, err := NewWallet("player-3")
	require.NoError(t, err)
	version := w.Version

	w.SetLocked(true)
	assert.True(t, w.Locked)
	assert.Equal(t, version+1, w.Version)

	// No-op when the state does not change
	w.SetLocked(true)
	assert.Equal(t, version+1, w.Version)

	w.SetLocked(false)
	assert.False(t, w.Locked)
}

func TestWallet_CanDebit(t *testing.T) {
	w, err := NewWallet("player-4")
	require.NoError(t, err)
	require.NoError(t, w.Credit(500))

	assert.True(t, w.CanDebit(500))
	assert.False(t, w.CanDebit(501))

	w.SetLocked(true)
	assert.False(t, w.CanDebit(1))
}
