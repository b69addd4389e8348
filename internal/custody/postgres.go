package custody

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// custodyAccount is the well-known party id of the engine's own account.
var custodyAccount = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// PostgresLedger is a double-entry ValueTransfer over Postgres. Every debit
// or credit writes two audit entries and moves balances between the party's
// account row and the custody row inside one transaction.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger wraps an open database handle.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Migrate creates the ledger tables and the custody account row.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS custody_accounts (
			party      UUID PRIMARY KEY,
			balance    NUMERIC NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS custody_entries (
			id         UUID PRIMARY KEY,
			party      UUID NOT NULL,
			direction  TEXT NOT NULL,
			amount     NUMERIC NOT NULL,
			balance    NUMERIC NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`)
	if err != nil {
		return fmt.Errorf("failed to migrate custody schema: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO custody_accounts (party, balance) VALUES ($1, 0)
		 ON CONFLICT (party) DO NOTHING`,
		custodyAccount,
	)
	if err != nil {
		return fmt.Errorf("failed to seed custody account: %w", err)
	}

	return nil
}

// Debit moves amount from the party's account into custody.
func (l *PostgresLedger) Debit(ctx context.Context, from uuid.UUID, amount decimal.Decimal) error {
	return l.move(ctx, from, custodyAccount, amount, "debit")
}

// Credit moves amount from custody to the party's account.
func (l *PostgresLedger) Credit(ctx context.Context, to uuid.UUID, amount decimal.Decimal) error {
	return l.move(ctx, custodyAccount, to, amount, "credit")
}

// Deposit funds a party's account from outside the system.
func (l *PostgresLedger) Deposit(ctx context.Context, party uuid.UUID, amount decimal.Decimal) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO custody_accounts (party, balance, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (party) DO UPDATE SET balance = custody_accounts.balance + $2, updated_at = now()`,
		party, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to deposit: %w", err)
	}
	return nil
}

// Balance returns a party's balance.
func (l *PostgresLedger) Balance(ctx context.Context, party uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.db.QueryRowContext(ctx,
		`SELECT balance FROM custody_accounts WHERE party = $1`, party,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("party %s: %w", party, ErrAccountNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

func (l *PostgresLedger) move(ctx context.Context, from, to uuid.UUID, amount decimal.Decimal, direction string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock in a fixed order to avoid deadlocks between concurrent moves.
	first, second := from, to
	if second.String() < first.String() {
		first, second = second, first
	}

	balances := make(map[uuid.UUID]decimal.Decimal, 2)
	for _, party := range []uuid.UUID{first, second} {
		var balance decimal.Decimal
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM custody_accounts WHERE party = $1 FOR UPDATE`, party,
		).Scan(&balance)
		if err == sql.ErrNoRows {
			return fmt.Errorf("party %s: %w", party, ErrAccountNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}
		balances[party] = balance
	}

	if balances[from].LessThan(amount) {
		return fmt.Errorf("%s %s from %s: %w", direction, amount, from, ErrInsufficientFunds)
	}

	newFrom := balances[from].Sub(amount)
	newTo := balances[to].Add(amount)

	for party, balance := range map[uuid.UUID]decimal.Decimal{from: newFrom, to: newTo} {
		_, err = tx.ExecContext(ctx,
			`UPDATE custody_accounts SET balance = $1, updated_at = now() WHERE party = $2`,
			balance, party,
		)
		if err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
	}

	now := time.Now()
	for _, leg := range []struct {
		party   uuid.UUID
		dir     string
		balance decimal.Decimal
	}{
		{from, "out", newFrom},
		{to, "in", newTo},
	} {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO custody_entries (id, party, direction, amount, balance, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), leg.party, leg.dir, amount, leg.balance, now,
		)
		if err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}
