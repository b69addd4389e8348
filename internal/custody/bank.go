package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bank is the in-memory ValueTransfer used by tests and single-node
// deployments without a database.
type Bank struct {
	mu       sync.Mutex
	balances map[uuid.UUID]decimal.Decimal
	custody  decimal.Decimal
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances: make(map[uuid.UUID]decimal.Decimal),
		custody:  decimal.Zero,
	}
}

// Deposit funds a party's balance.
func (b *Bank) Deposit(party uuid.UUID, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[party] = b.balances[party].Add(amount)
}

// Balance returns a party's balance.
func (b *Bank) Balance(party uuid.UUID) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[party]
}

// CustodyBalance returns the value currently held by the engine.
func (b *Bank) CustodyBalance() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.custody
}

// Debit moves amount from the party into custody.
func (b *Bank) Debit(ctx context.Context, from uuid.UUID, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balances[from]
	if balance.LessThan(amount) {
		return fmt.Errorf("debit %s from %s: %w", amount, from, ErrInsufficientFunds)
	}

	b.balances[from] = balance.Sub(amount)
	b.custody = b.custody.Add(amount)
	return nil
}

// Credit moves amount from custody to the party.
func (b *Bank) Credit(ctx context.Context, to uuid.UUID, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.custody.LessThan(amount) {
		return fmt.Errorf("credit %s to %s: %w", amount, to, ErrInsufficientFunds)
	}

	b.custody = b.custody.Sub(amount)
	b.balances[to] = b.balances[to].Add(amount)
	return nil
}
