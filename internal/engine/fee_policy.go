package engine

import (
	"github.com/arena-wallet-ledger/internal/config"
	"github.com/arena-wallet-ledger/internal/domain/shared"
)

// feePolicyVersion identifies the current fee schedule. Bump it whenever the
// formula changes so historical records stay reproducible.
const feePolicyVersion = 1

// FeePolicy computes a deterministic fee for an operation type and amount.
// It is pure: same inputs, same fee, no clock and no storage.
type FeePolicy struct {
	depositRateBps int64
	depositFeeCap  int64
}

func NewFeePolicy(cfg *config.WalletConfig) *FeePolicy {
	return &FeePolicy{
		depositRateBps: cfg.DepositFeeBps,
		depositFeeCap:  cfg.DepositFeeCap,
	}
}

// Version returns the fee schedule version stamped onto transaction records
func (p *FeePolicy) Version() int {
	return feePolicyVersion
}

// Fee returns the fee in minor units, always >= 0. Only deposits carry a fee:
// the fee is deducted from the deposited amount, so the wallet is credited
// amount minus fee. Withdrawals, transfers, and entry-fee charges are free.
func (p *FeePolicy) Fee(txType shared.TransactionType, amount int64) int64 {
	if txType != shared.TransactionTypeDeposit || amount <= 0 {
		return 0
	}

	// Round half up in integer arithmetic
	fee := (amount*p.depositRateBps + 5000) / 10000
	if fee > p.depositFeeCap {
		fee = p.depositFeeCap
	}
	if fee < 0 {
		fee = 0
	}
	return fee
}
