// Package engine implements the wallet ledger core: deposits, withdrawals,
// peer transfers, and entry-fee charges, with idempotency keyed on
// caller-supplied reference codes and per-wallet concurrency control.
//
// Every mutation follows the same shape: a PENDING transaction record is
// written before any balance is touched, and the balance effects commit in
// the same atomic unit that flips the record to COMPLETED. A PENDING record
// therefore always means "no effects applied", which is what makes crash
// recovery and retries safe.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/config"
	"github.com/arena-wallet-ledger/internal/domain/outbox"
	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
)

// Engine is the only component permitted to mutate wallet balances
type Engine struct {
	store     Store
	fees      *FeePolicy
	gateway   PaymentGateway
	directory AccountDirectory
	cache     BalanceInvalidator // optional
	logger    *slog.Logger
	cfg       config.WalletConfig
}

func NewEngine(
	logger *slog.Logger,
	cfg config.WalletConfig,
	store Store,
	fees *FeePolicy,
	gateway PaymentGateway,
	directory AccountDirectory,
	cache BalanceInvalidator,
) *Engine {
	return &Engine{
		store:     store,
		fees:      fees,
		gateway:   gateway,
		directory: directory,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateWallet provisions the single wallet for an owner after checking the
// owner against the external account directory.
func (e *Engine) CreateWallet(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	exists, err := e.directory.AccountExists(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("account directory lookup failed: %w", err)
	}
	if !exists {
		return nil, ErrOwnerUnknown
	}

	existing, err := e.store.Stores().Wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, wallet.ErrDuplicateOwner{OwnerID: ownerID}
	}

	w, err := wallet.NewWallet(ownerID)
	if err != nil {
		return nil, err
	}

	if err := e.store.Stores().Wallets.Create(ctx, w); err != nil {
		return nil, err
	}

	e.logger.Info("Wallet created", "wallet_id", w.ID.String(), "owner_id", ownerID)
	return w, nil
}

// SetLocked freezes or unfreezes a wallet. While locked, every mutating
// operation on the wallet is rejected.
func (e *Engine) SetLocked(ctx context.Context, walletID uuid.UUID, locked bool) (*wallet.Wallet, error) {
	var updated *wallet.Wallet
	err := e.applyWithRetry(ctx, func(ctx context.Context, s Stores) error {
		w, err := s.Wallets.LockForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		w.SetLocked(locked)
		if err := s.Wallets.Update(ctx, w); err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(ctx, walletID)
	e.logger.Info("Wallet lock state changed", "wallet_id", walletID.String(), "locked", locked)
	return updated, nil
}

// Deposit credits a wallet after the upstream payment is confirmed. The fee
// is deducted from the deposited amount: the wallet is credited amount−fee.
func (e *Engine) Deposit(ctx context.Context, walletID uuid.UUID, amount int64, referenceCode string, method shared.PaymentMethod) (*DepositResult, error) {
	logger := e.logger.With("reference_code", referenceCode)

	if referenceCode == "" {
		return nil, ErrInvalidReference
	}
	if amount < e.cfg.MinTopUp || amount > e.cfg.MaxTopUp {
		return nil, ErrAmountOutOfBounds
	}
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	rec, err := e.ensurePending(ctx, func() *transaction.Record {
		r := transaction.NewPending(referenceCode, walletID, shared.TransactionTypeDeposit, amount)
		r.PaymentMethod = method
		return r
	}, walletID, shared.TransactionTypeDeposit, amount)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsFinal() {
		logger.Info("Replaying finalized deposit", "status", string(rec.Status))
		return e.replayDeposit(rec)
	}

	// No balance is credited before the upstream confirmation. A transport
	// error leaves the outcome unknown, so the record stays PENDING for the
	// reconciler instead of being failed here.
	conf, err := e.gateway.Confirm(ctx, method, amount, referenceCode)
	if err != nil {
		logger.Error("Payment confirmation errored, leaving record pending", "error", err)
		return nil, fmt.Errorf("payment confirmation failed: %w", err)
	}
	if !conf.Approved {
		logger.Warn("Payment declined by upstream gateway")
		if ferr := e.finalizeFailed(ctx, shared.FailureReasonUpstreamPayment, rec); ferr != nil {
			logger.Error("Failed to record declined payment", "error", ferr)
		}
		return nil, ErrUpstreamPaymentFailed
	}

	fee := e.fees.Fee(shared.TransactionTypeDeposit, amount)
	credited := amount - fee

	var result *DepositResult
	applyErr := e.applyWithRetry(ctx, func(ctx context.Context, s Stores) error {
		w, err := s.Wallets.LockForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if w.Locked {
			return wallet.ErrWalletLocked
		}

		before := w.Balance
		if err := w.Credit(credited); err != nil {
			return err
		}
		if w.Balance != before+credited || w.Balance < 0 {
			return ErrInternalInconsistency
		}
		if err := s.Wallets.Update(ctx, w); err != nil {
			return err
		}

		fin := transaction.Finalization{
			Status:           shared.TransactionStatusCompleted,
			Fee:              fee,
			FeePolicyVersion: e.fees.Version(),
			BalanceAfter:     &w.Balance,
			PaymentRef:       conf.Reference,
			CompletedAt:      time.Now(),
		}
		ok, err := s.Transactions.Finalize(ctx, referenceCode, fin)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyFinalized
		}

		if err := e.enqueueEvent(ctx, s, rec, fin); err != nil {
			return err
		}

		result = &DepositResult{
			TransactionID: rec.ID,
			ReferenceCode: referenceCode,
			NewBalance:    w.Balance,
			Fee:           fee,
		}
		return nil
	})

	return e.settleDeposit(ctx, logger, rec, result, applyErr)
}

func (e *Engine) settleDeposit(ctx context.Context, logger *slog.Logger, rec *transaction.Record, result *DepositResult, applyErr error) (*DepositResult, error) {
	switch {
	case applyErr == nil:
		e.invalidate(ctx, rec.WalletID)
		logger.Info("Deposit completed", "wallet_id", rec.WalletID.String(), "amount", rec.Amount, "fee", result.Fee, "new_balance", result.NewBalance)
		return result, nil

	case errors.Is(applyErr, errAlreadyFinalized):
		final, err := e.fetchRecord(ctx, rec.ReferenceCode)
		if err != nil {
			return nil, err
		}
		if final == nil || !final.Status.IsFinal() {
			return nil, ErrTransientConflict
		}
		return e.replayDeposit(final)

	case isBusinessFailure(applyErr):
		logger.Warn("Deposit rejected", "wallet_id", rec.WalletID.String(), "error", applyErr)
		if ferr := e.finalizeFailed(ctx, failureReasonFor(applyErr), rec); ferr != nil {
			logger.Error("Failed to finalize rejected deposit", "error", ferr)
		}
		return nil, applyErr

	default:
		return nil, applyErr
	}
}

// Withdraw debits a wallet. Withdrawals carry no fee under the current
// fee schedule.
func (e *Engine) Withdraw(ctx context.Context, walletID uuid.UUID, amount int64, referenceCode string) (*WithdrawResult, error) {
	return e.debit(ctx, walletID, amount, referenceCode, shared.TransactionTypeWithdrawal, "")
}

// ChargeEntryFee debits a wallet to fund a tournament entry. Semantically a
// withdrawal recorded under its own transaction type.
func (e *Engine) ChargeEntryFee(ctx context.Context, walletID uuid.UUID, amount int64, referenceCode, note string) (*WithdrawResult, error) {
	return e.debit(ctx, walletID, amount, referenceCode, shared.TransactionTypeEntryFeeCharge, note)
}

func (e *Engine) debit(ctx context.Context, walletID uuid.UUID, amount int64, referenceCode string, txType shared.TransactionType, note string) (*WithdrawResult, error) {
	logger := e.logger.With("reference_code", referenceCode)

	if referenceCode == "" {
		return nil, ErrInvalidReference
	}
	if amount <= 0 {
		return nil, wallet.ErrInvalidAmount
	}

	rec, err := e.ensurePending(ctx, func() *transaction.Record {
		r := transaction.NewPending(referenceCode, walletID, txType, amount)
		r.Note = note
		return r
	}, walletID, txType, amount)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsFinal() {
		logger.Info("Replaying finalized debit", "type", string(txType), "status", string(rec.Status))
		return e.replayDebit(rec)
	}

	var result *WithdrawResult
	applyErr := e.applyWithRetry(ctx, func(ctx context.Context, s Stores) error {
		w, err := s.Wallets.LockForUpdate(ctx, walletID)
		if err != nil {
			return err
		}

		before := w.Balance
		if err := w.Debit(amount); err != nil {
			return err
		}
		if w.Balance != before-amount || w.Balance < 0 {
			return ErrInternalInconsistency
		}
		if err := s.Wallets.Update(ctx, w); err != nil {
			return err
		}

		fin := transaction.Finalization{
			Status:           shared.TransactionStatusCompleted,
			FeePolicyVersion: e.fees.Version(),
			BalanceAfter:     &w.Balance,
			CompletedAt:      time.Now(),
		}
		ok, err := s.Transactions.Finalize(ctx, referenceCode, fin)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyFinalized
		}

		if err := e.enqueueEvent(ctx, s, rec, fin); err != nil {
			return err
		}

		result = &WithdrawResult{
			TransactionID: rec.ID,
			ReferenceCode: referenceCode,
			NewBalance:    w.Balance,
		}
		return nil
	})

	switch {
	case applyErr == nil:
		e.invalidate(ctx, walletID)
		logger.Info("Debit completed", "type", string(txType), "wallet_id", walletID.String(), "amount", amount, "new_balance", result.NewBalance)
		return result, nil

	case errors.Is(applyErr, errAlreadyFinalized):
		final, err := e.fetchRecord(ctx, referenceCode)
		if err != nil {
			return nil, err
		}
		if final == nil || !final.Status.IsFinal() {
			return nil, ErrTransientConflict
		}
		return e.replayDebit(final)

	case isBusinessFailure(applyErr):
		logger.Warn("Debit rejected", "type", string(txType), "wallet_id", walletID.String(), "error", applyErr)
		if ferr := e.finalizeFailed(ctx, failureReasonFor(applyErr), rec); ferr != nil {
			logger.Error("Failed to finalize rejected debit", "error", ferr)
		}
		return nil, applyErr

	default:
		return nil, applyErr
	}
}

// Transfer atomically moves amount from one wallet to another. Both legs of
// the transfer commit together; no observer ever sees the sender debited
// without the receiver credited. Wallet locks are always taken in ascending
// id order so opposing concurrent transfers cannot deadlock.
func (e *Engine) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, referenceCode, note string) (*TransferResult, error) {
	logger := e.logger.With("reference_code", referenceCode)

	if referenceCode == "" {
		return nil, ErrInvalidReference
	}
	if amount <= 0 {
		return nil, wallet.ErrInvalidAmount
	}
	if fromID == toID {
		return nil, ErrSelfTransfer
	}

	outRec, inRec, err := e.ensureTransferPending(ctx, fromID, toID, amount, referenceCode, note)
	if err != nil {
		return nil, err
	}
	if outRec.Status.IsFinal() {
		logger.Info("Replaying finalized transfer", "status", string(outRec.Status))
		return e.replayTransfer(ctx, outRec)
	}

	var result *TransferResult
	applyErr := e.applyWithRetry(ctx, func(ctx context.Context, s Stores) error {
		from, to, err := lockPair(ctx, s, fromID, toID)
		if err != nil {
			return err
		}
		if from.Locked || to.Locked {
			return wallet.ErrWalletLocked
		}
		if from.Balance < amount {
			return wallet.ErrInsufficientFunds
		}

		total := from.Balance + to.Balance
		if err := from.Debit(amount); err != nil {
			return err
		}
		if err := to.Credit(amount); err != nil {
			return err
		}
		// Conservation: a transfer neither creates nor destroys money.
		if from.Balance+to.Balance != total || from.Balance < 0 {
			return ErrInternalInconsistency
		}

		if err := s.Wallets.Update(ctx, from); err != nil {
			return err
		}
		if err := s.Wallets.Update(ctx, to); err != nil {
			return err
		}

		now := time.Now()
		outFin := transaction.Finalization{
			Status:           shared.TransactionStatusCompleted,
			FeePolicyVersion: e.fees.Version(),
			BalanceAfter:     &from.Balance,
			CompletedAt:      now,
		}
		inFin := transaction.Finalization{
			Status:           shared.TransactionStatusCompleted,
			FeePolicyVersion: e.fees.Version(),
			BalanceAfter:     &to.Balance,
			CompletedAt:      now,
		}

		okOut, err := s.Transactions.Finalize(ctx, outRec.ReferenceCode, outFin)
		if err != nil {
			return err
		}
		okIn, err := s.Transactions.Finalize(ctx, inRec.ReferenceCode, inFin)
		if err != nil {
			return err
		}
		if !okOut || !okIn {
			return errAlreadyFinalized
		}

		if err := e.enqueueEvent(ctx, s, outRec, outFin); err != nil {
			return err
		}
		if err := e.enqueueEvent(ctx, s, inRec, inFin); err != nil {
			return err
		}

		result = &TransferResult{
			TransactionID: outRec.ID,
			ReferenceCode: referenceCode,
			FromBalance:   from.Balance,
			ToBalance:     to.Balance,
		}
		return nil
	})

	switch {
	case applyErr == nil:
		e.invalidate(ctx, fromID)
		e.invalidate(ctx, toID)
		logger.Info("Transfer completed",
			"from_wallet_id", fromID.String(),
			"to_wallet_id", toID.String(),
			"amount", amount,
			"from_balance", result.FromBalance,
			"to_balance", result.ToBalance,
		)
		return result, nil

	case errors.Is(applyErr, errAlreadyFinalized):
		final, err := e.fetchRecord(ctx, referenceCode)
		if err != nil {
			return nil, err
		}
		if final != nil && final.Status.IsFinal() {
			return e.replayTransfer(ctx, final)
		}
		// One leg was finalized externally (reconciler timeout) while the
		// other is still pending: fail the remaining leg the same way.
		if ferr := e.finalizeFailed(ctx, shared.FailureReasonPendingTimeout, outRec, inRec); ferr != nil {
			logger.Error("Failed to fail orphaned transfer leg", "error", ferr)
		}
		return nil, ErrPendingExpired

	case isBusinessFailure(applyErr):
		if errors.Is(applyErr, wallet.ErrWalletNotFound{WalletID: toID}) {
			applyErr = ErrReceiverNotFound
		}
		logger.Warn("Transfer rejected", "from_wallet_id", fromID.String(), "to_wallet_id", toID.String(), "error", applyErr)
		if ferr := e.finalizeFailed(ctx, failureReasonFor(applyErr), outRec, inRec); ferr != nil {
			logger.Error("Failed to finalize rejected transfer", "error", ferr)
		}
		return nil, applyErr

	default:
		return nil, applyErr
	}
}

// ExpirePending fails a stuck PENDING record. Safe by construction: a record
// still PENDING has had no balance effect applied, so failing it cannot lose
// money. Returns whether this call performed the flip.
func (e *Engine) ExpirePending(ctx context.Context, referenceCode string) (bool, error) {
	rec, err := e.fetchRecord(ctx, referenceCode)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.Status.IsFinal() {
		return false, nil
	}

	expired := false
	err = e.store.RunAtomic(ctx, func(ctx context.Context, s Stores) error {
		fin := transaction.Finalization{
			Status:           shared.TransactionStatusFailed,
			FeePolicyVersion: e.fees.Version(),
			FailureReason:    shared.FailureReasonPendingTimeout,
			CompletedAt:      time.Now(),
		}
		ok, err := s.Transactions.Finalize(ctx, referenceCode, fin)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		expired = true
		return e.enqueueEvent(ctx, s, rec, fin)
	})
	if err != nil {
		return false, err
	}

	if expired {
		e.logger.Warn("Expired stuck pending transaction", "reference_code", referenceCode, "wallet_id", rec.WalletID.String(), "type", string(rec.Type))
	}
	return expired, nil
}

// PendingTimeout exposes the configured stuck-record cutoff to the reconciler
func (e *Engine) PendingTimeout() time.Duration {
	return e.cfg.PendingTimeout
}

// ---- internals ----

// fetchRecord loads a record by reference code, mapping not-found to nil
func (e *Engine) fetchRecord(ctx context.Context, referenceCode string) (*transaction.Record, error) {
	rec, err := e.store.Stores().Transactions.GetByReferenceCode(ctx, referenceCode)
	if err != nil {
		if errors.Is(err, transaction.ErrRecordNotFound{}) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ensurePending returns the record owning the reference code, creating a new
// PENDING one when the code is unseen. The unique index arbitrates concurrent
// first calls; the loser adopts the winner's record.
func (e *Engine) ensurePending(ctx context.Context, build func() *transaction.Record, walletID uuid.UUID, txType shared.TransactionType, amount int64) (*transaction.Record, error) {
	rec, err := e.fetchRecord(ctx, build().ReferenceCode)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Validate the wallet before writing anything, so a bad wallet id
		// never leaves a record behind; the apply phase re-checks under lock.
		if _, err := e.store.Stores().Wallets.GetByID(ctx, walletID); err != nil {
			return nil, err
		}
		rec = build()
		if err := e.store.Stores().Transactions.Create(ctx, rec); err != nil {
			if !errors.Is(err, transaction.ErrDuplicateReference{}) {
				return nil, err
			}
			rec, err = e.fetchRecord(ctx, rec.ReferenceCode)
			if err != nil {
				return nil, err
			}
			if rec == nil {
				return nil, ErrTransientConflict
			}
		}
	}

	if rec.WalletID != walletID || rec.Type != txType || rec.Amount != amount {
		return nil, ErrReferenceInUse
	}
	return rec, nil
}

// ensureTransferPending creates (or adopts) both legs of a transfer as one
// atomic pair, so a crash can never leave a half-described transfer.
func (e *Engine) ensureTransferPending(ctx context.Context, fromID, toID uuid.UUID, amount int64, referenceCode, note string) (*transaction.Record, *transaction.Record, error) {
	outRec, err := e.fetchRecord(ctx, referenceCode)
	if err != nil {
		return nil, nil, err
	}

	if outRec == nil {
		// Validate both wallets before writing anything; the apply phase
		// re-checks under lock.
		if _, err := e.store.Stores().Wallets.GetByID(ctx, fromID); err != nil {
			return nil, nil, err
		}
		if _, err := e.store.Stores().Wallets.GetByID(ctx, toID); err != nil {
			if errors.Is(err, wallet.ErrWalletNotFound{}) {
				return nil, nil, ErrReceiverNotFound
			}
			return nil, nil, err
		}

		out := transaction.NewPending(referenceCode, fromID, shared.TransactionTypeTransferOut, amount)
		out.CounterpartyWalletID = &toID
		out.Note = note

		in := transaction.NewPending(referenceCode+transaction.TransferInSuffix, toID, shared.TransactionTypeTransferIn, amount)
		in.CounterpartyWalletID = &fromID
		in.CorrelationID = referenceCode
		in.Note = note

		err = e.store.RunAtomic(ctx, func(ctx context.Context, s Stores) error {
			if err := s.Transactions.Create(ctx, out); err != nil {
				return err
			}
			return s.Transactions.Create(ctx, in)
		})
		if err == nil {
			return out, in, nil
		}
		if !errors.Is(err, transaction.ErrDuplicateReference{}) {
			return nil, nil, err
		}
		outRec, err = e.fetchRecord(ctx, referenceCode)
		if err != nil {
			return nil, nil, err
		}
		if outRec == nil {
			return nil, nil, ErrTransientConflict
		}
	}

	if outRec.WalletID != fromID || outRec.Type != shared.TransactionTypeTransferOut || outRec.Amount != amount ||
		outRec.CounterpartyWalletID == nil || *outRec.CounterpartyWalletID != toID {
		return nil, nil, ErrReferenceInUse
	}

	inRec, err := e.fetchRecord(ctx, referenceCode+transaction.TransferInSuffix)
	if err != nil {
		return nil, nil, err
	}
	if inRec == nil {
		return nil, nil, ErrInternalInconsistency
	}
	return outRec, inRec, nil
}

// applyWithRetry runs fn atomically, retrying a bounded number of times on
// optimistic-lock conflicts. Conflicts are never surfaced to callers directly.
func (e *Engine) applyWithRetry(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	var err error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		err = e.store.RunAtomic(ctx, fn)
		if err == nil || !errors.Is(err, wallet.ErrConcurrentModification{}) {
			return err
		}
		e.logger.Debug("Retrying after concurrent modification", "attempt", attempt+1)
	}
	return fmt.Errorf("%w: %v", ErrTransientConflict, err)
}

// finalizeFailed flips the given PENDING records to FAILED with the reason
// and enqueues the matching events, all in one atomic unit.
func (e *Engine) finalizeFailed(ctx context.Context, reason shared.FailureReason, recs ...*transaction.Record) error {
	return e.store.RunAtomic(ctx, func(ctx context.Context, s Stores) error {
		for _, rec := range recs {
			fin := transaction.Finalization{
				Status:           shared.TransactionStatusFailed,
				FeePolicyVersion: e.fees.Version(),
				FailureReason:    reason,
				CompletedAt:      time.Now(),
			}
			ok, err := s.Transactions.Finalize(ctx, rec.ReferenceCode, fin)
			if err != nil {
				return err
			}
			if !ok {
				continue // already final, nothing to record
			}
			if err := e.enqueueEvent(ctx, s, rec, fin); err != nil {
				return err
			}
		}
		return nil
	})
}

// enqueueEvent writes the finalized record to the transactional outbox so the
// event stream only ever carries committed state
func (e *Engine) enqueueEvent(ctx context.Context, s Stores, rec *transaction.Record, fin transaction.Finalization) error {
	finalized := *rec
	finalized.Status = fin.Status
	finalized.Fee = fin.Fee
	finalized.FeePolicyVersion = fin.FeePolicyVersion
	finalized.BalanceAfter = fin.BalanceAfter
	finalized.FailureReason = string(fin.FailureReason)
	finalized.PaymentRef = fin.PaymentRef
	completedAt := fin.CompletedAt
	finalized.CompletedAt = &completedAt

	msg, err := outbox.NewMessage(&finalized)
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return s.Outbox.Create(ctx, msg)
}

func (e *Engine) replayDeposit(rec *transaction.Record) (*DepositResult, error) {
	if rec.Status == shared.TransactionStatusFailed {
		return nil, failureFor(shared.FailureReason(rec.FailureReason))
	}
	if rec.BalanceAfter == nil {
		return nil, ErrInternalInconsistency
	}
	return &DepositResult{
		TransactionID: rec.ID,
		ReferenceCode: rec.ReferenceCode,
		NewBalance:    *rec.BalanceAfter,
		Fee:           rec.Fee,
	}, nil
}

func (e *Engine) replayDebit(rec *transaction.Record) (*WithdrawResult, error) {
	if rec.Status == shared.TransactionStatusFailed {
		return nil, failureFor(shared.FailureReason(rec.FailureReason))
	}
	if rec.BalanceAfter == nil {
		return nil, ErrInternalInconsistency
	}
	return &WithdrawResult{
		TransactionID: rec.ID,
		ReferenceCode: rec.ReferenceCode,
		NewBalance:    *rec.BalanceAfter,
	}, nil
}

func (e *Engine) replayTransfer(ctx context.Context, outRec *transaction.Record) (*TransferResult, error) {
	if outRec.Status == shared.TransactionStatusFailed {
		return nil, failureFor(shared.FailureReason(outRec.FailureReason))
	}
	inRec, err := e.fetchRecord(ctx, outRec.ReferenceCode+transaction.TransferInSuffix)
	if err != nil {
		return nil, err
	}
	if inRec == nil || outRec.BalanceAfter == nil || inRec.BalanceAfter == nil {
		return nil, ErrInternalInconsistency
	}
	return &TransferResult{
		TransactionID: outRec.ID,
		ReferenceCode: outRec.ReferenceCode,
		FromBalance:   *outRec.BalanceAfter,
		ToBalance:     *inRec.BalanceAfter,
	}, nil
}

func (e *Engine) invalidate(ctx context.Context, walletID uuid.UUID) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, walletID); err != nil {
		e.logger.Warn("Failed to invalidate balance cache", "wallet_id", walletID.String(), "error", err)
	}
}

// lockPair locks two wallets in ascending id order regardless of transfer
// direction, returning them as (from, to)
func lockPair(ctx context.Context, s Stores, fromID, toID uuid.UUID) (*wallet.Wallet, *wallet.Wallet, error) {
	first, second := fromID, toID
	if lessID(toID, fromID) {
		first, second = toID, fromID
	}

	w1, err := s.Wallets.LockForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := s.Wallets.LockForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if w1.ID == fromID {
		return w1, w2, nil
	}
	return w2, w1, nil
}

func lessID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// isBusinessFailure reports whether the error is an expected rule violation
// that should finalize the record FAILED rather than leave it PENDING
func isBusinessFailure(err error) bool {
	return errors.Is(err, wallet.ErrInsufficientFunds) ||
		errors.Is(err, wallet.ErrWalletLocked) ||
		errors.Is(err, wallet.ErrInvalidAmount) ||
		errors.Is(err, wallet.ErrWalletNotFound{})
}
