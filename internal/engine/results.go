package engine

// DepositResult is returned by Deposit, including on idempotent replay
type DepositResult struct {
	TransactionID int64
	ReferenceCode string
	NewBalance    int64
	Fee           int64
}

// WithdrawResult is returned by Withdraw and ChargeEntryFee
type WithdrawResult struct {
	TransactionID int64
	ReferenceCode string
	NewBalance    int64
}

// TransferResult is returned by Transfer, including on idempotent replay
type TransferResult struct {
	TransactionID int64
	ReferenceCode string
	FromBalance   int64
	ToBalance     int64
}
