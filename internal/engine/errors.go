package engine

import (
	"errors"

	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
)

// Typed failures returned to callers. Balance-rule failures reuse the wallet
// domain errors so errors.Is works across layers.
var (
	// ErrAmountOutOfBounds indicates the amount is outside the configured
	// top-up bounds.
	ErrAmountOutOfBounds = errors.New("amount outside configured bounds")

	// ErrInvalidPaymentMethod indicates an unknown upstream funding channel.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidReference indicates an empty or malformed reference code.
	ErrInvalidReference = errors.New("reference code is required")

	// ErrReferenceInUse indicates the reference code was already used for a
	// different operation. A retry must repeat the original parameters.
	ErrReferenceInUse = errors.New("reference code already used with different parameters")

	// ErrSelfTransfer indicates sender and receiver are the same wallet.
	ErrSelfTransfer = errors.New("cannot transfer to the same wallet")

	// ErrReceiverNotFound indicates the transfer receiver has no wallet.
	ErrReceiverNotFound = errors.New("receiver wallet not found")

	// ErrOwnerUnknown indicates the user-management directory does not know
	// the owner a wallet was requested for.
	ErrOwnerUnknown = errors.New("owner not found in account directory")

	// ErrUpstreamPaymentFailed indicates the payment gateway declined the
	// deposit. The transaction record is finalized FAILED, balance untouched.
	ErrUpstreamPaymentFailed = errors.New("upstream payment failed")

	// ErrPendingExpired indicates the operation's pending record timed out
	// before any effect was applied and was failed by the reconciler.
	ErrPendingExpired = errors.New("operation expired before completion")

	// ErrTransientConflict is reported after bounded internal retries on
	// concurrent modification all failed. Safe to retry with the same
	// reference code.
	ErrTransientConflict = errors.New("transient conflict, retry with the same reference code")

	// ErrInternalInconsistency indicates an invariant check failed despite
	// passing validation. The operation is aborted without mutating state
	// and the condition is never repaired automatically.
	ErrInternalInconsistency = errors.New("internal inconsistency detected")
)

// errAlreadyFinalized aborts an apply transaction whose record was finalized
// by a concurrent retry; the caller re-reads and replays the stored result.
var errAlreadyFinalized = errors.New("record already finalized")

// failureReasonFor maps a business failure to the reason stored on the record
func failureReasonFor(err error) shared.FailureReason {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return shared.FailureReasonInsufficientFunds
	case errors.Is(err, wallet.ErrWalletLocked):
		return shared.FailureReasonAccountLocked
	case errors.Is(err, wallet.ErrInvalidAmount), errors.Is(err, ErrAmountOutOfBounds):
		return shared.FailureReasonInvalidAmount
	case errors.Is(err, ErrReceiverNotFound):
		return shared.FailureReasonReceiverNotFound
	case errors.Is(err, ErrUpstreamPaymentFailed):
		return shared.FailureReasonUpstreamPayment
	}
	return shared.FailureReasonUnknownError
}

// failureFor is the inverse mapping, used when replaying a FAILED record so a
// retried call observes the same outcome as the original.
func failureFor(reason shared.FailureReason) error {
	switch reason {
	case shared.FailureReasonInsufficientFunds:
		return wallet.ErrInsufficientFunds
	case shared.FailureReasonAccountLocked:
		return wallet.ErrWalletLocked
	case shared.FailureReasonInvalidAmount:
		return ErrAmountOutOfBounds
	case shared.FailureReasonReceiverNotFound:
		return ErrReceiverNotFound
	case shared.FailureReasonUpstreamPayment:
		return ErrUpstreamPaymentFailed
	case shared.FailureReasonPendingTimeout:
		return ErrPendingExpired
	}
	return ErrInternalInconsistency
}
