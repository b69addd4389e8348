package custody

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// ValueTransfer moves fungible value between the engine's custody account
// and external parties. Implementations must be atomic per call: either the
// full movement is observed or none of it. Failures are returned, never
// swallowed.
type ValueTransfer interface {
	// Debit moves amount from the party into custody (entry fees).
	Debit(ctx context.Context, from uuid.UUID, amount decimal.Decimal) error
	// Credit moves amount from custody to the party (payouts, fee withdrawals).
	Credit(ctx context.Context, to uuid.UUID, amount decimal.Decimal) error
}
