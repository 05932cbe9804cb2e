package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/domain/shared"
)

// Confirmation is the upstream gateway's answer to a payment request
type Confirmation struct {
	Approved  bool
	Reference string
}

// PaymentGateway is the opaque upstream confirmation call for deposits. The
// engine never credits a balance before Confirm returns an approval. A
// transport error means the outcome is unknown: the pending record is left in
// place for the reconciler rather than being failed outright.
type PaymentGateway interface {
	Confirm(ctx context.Context, method shared.PaymentMethod, amount int64, details string) (Confirmation, error)
}

// SimulatedGateway approves every payment with a synthetic reference. Used in
// development deployments and tests where no real processor is connected.
type SimulatedGateway struct{}

func (SimulatedGateway) Confirm(_ context.Context, _ shared.PaymentMethod, _ int64, _ string) (Confirmation, error) {
	return Confirmation{Approved: true, Reference: uuid.NewString()}, nil
}
