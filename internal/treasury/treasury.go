package treasury

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chronolot/chronolot/internal/auth"
	"github.com/chronolot/chronolot/internal/custody"
	"github.com/chronolot/chronolot/pkg/messaging"
	"github.com/chronolot/chronolot/pkg/money"

	"github.com/google/uuid"
)

// Treasury holds the protocol fee parameter and the accrued cut. Both are
// process-wide state mutated only by the operator (or by settlement via
// Accrue), guarded by the treasury's own lock.
type Treasury struct {
	mu      sync.Mutex
	feeBps  int64
	accrued decimal.Decimal

	guard  *auth.Guard
	bank   custody.ValueTransfer
	events *messaging.Client
	log    *zap.Logger
}

// New creates a treasury with the given initial fee.
func New(guard *auth.Guard, bank custody.ValueTransfer, events *messaging.Client, log *zap.Logger, initialBps int64) (*Treasury, error) {
	if err := money.ValidateFeeBps(initialBps); err != nil {
		return nil, err
	}
	return &Treasury{
		feeBps:  initialBps,
		accrued: decimal.Zero,
		guard:   guard,
		bank:    bank,
		events:  events,
		log:     log,
	}, nil
}

// FeeBps returns the current protocol fee in basis points.
func (t *Treasury) FeeBps() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.feeBps
}

// Accrued returns the fee accumulated since the last withdrawal.
func (t *Treasury) Accrued() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accrued
}

// SetFeeBps replaces the protocol fee. Operator only; values above 100% of
// the pool are rejected.
func (t *Treasury) SetFeeBps(ctx context.Context, caller uuid.UUID, newBps int64) error {
	if err := t.guard.RequireOperator(caller); err != nil {
		return err
	}
	if err := money.ValidateFeeBps(newBps); err != nil {
		return err
	}

	t.mu.Lock()
	oldBps := t.feeBps
	t.feeBps = newBps
	t.mu.Unlock()

	t.log.Info("protocol fee changed",
		zap.Int64("old_bps", oldBps),
		zap.Int64("new_bps", newBps))

	t.events.Publish(ctx, messaging.EventTypeFeeBpsChanged, messaging.FeeBpsChangedEvent{
		Caller: caller,
		OldBps: oldBps,
		NewBps: newBps,
	})

	return nil
}

// Accrue adds a settled raffle's fee cut to the accumulator.
func (t *Treasury) Accrue(amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accrued = t.accrued.Add(amount)
}

// Withdraw transfers the full accrued fee to the operator and resets the
// accumulator. A zero balance succeeds as a no-op. If the credit fails the
// accrual is restored so the operator can retry.
func (t *Treasury) Withdraw(ctx context.Context, caller uuid.UUID) (decimal.Decimal, error) {
	if err := t.guard.RequireOperator(caller); err != nil {
		return decimal.Zero, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.accrued.IsZero() {
		return decimal.Zero, nil
	}

	amount := t.accrued
	t.accrued = decimal.Zero

	if err := t.bank.Credit(ctx, t.guard.Operator(), amount); err != nil {
		t.accrued = amount
		return decimal.Zero, fmt.Errorf("fee withdrawal transfer failed: %w", err)
	}

	t.log.Info("protocol fee withdrawn", zap.String("amount", amount.String()))

	t.events.Publish(ctx, messaging.EventTypeFeeWithdrawn, messaging.FeeWithdrawnEvent{
		Operator: t.guard.Operator(),
		Amount:   amount.String(),
	})

	return amount, nil
}
