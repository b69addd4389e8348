package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are integral base units of the reference currency. One whole unit
// is 1,000,000 base units.
const (
	BaseUnitsPerUnit = 1_000_000

	// BpsDenominator converts basis points to a fraction of the pool.
	BpsDenominator = 10_000

	// MaxFeeBps caps the protocol fee at 100% of the pool.
	MaxFeeBps = 10_000
)

var (
	ErrPayoutOverflow = errors.New("fee plus payouts exceed pool")
	ErrInvalidAmount  = errors.New("amount must be a non-negative integer of base units")
	ErrFeeBpsRange    = errors.New("fee bps out of range")

	// MinEntryFee is the exclusive lower bound for raffle entry fees:
	// a fee must exceed one whole unit of the reference currency.
	MinEntryFee = decimal.NewFromInt(BaseUnitsPerUnit)
)

// Validate reports whether amt is usable as a ledger amount.
func Validate(amt decimal.Decimal) error {
	if amt.IsNegative() || !amt.Equal(amt.Floor()) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amt)
	}
	return nil
}

// ValidateFeeBps reports whether bps is an acceptable protocol fee.
func ValidateFeeBps(bps int64) error {
	if bps < 0 || bps > MaxFeeBps {
		return fmt.Errorf("%w: %d", ErrFeeBpsRange, bps)
	}
	return nil
}

// Fee computes the protocol cut of pool at the given basis points,
// rounded down.
func Fee(pool decimal.Decimal, bps int64) decimal.Decimal {
	return pool.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(BpsDenominator)).Floor()
}

// Split computes the settlement amounts for a pool: the protocol fee and the
// per-recipient payout (half of the remainder, rounded down; winner and
// beneficiary each receive one payout). It re-checks that the legs never
// overdraw the pool, even if the fee parameter was misconfigured.
func Split(pool decimal.Decimal, bps int64) (fee, payout decimal.Decimal, err error) {
	fee = Fee(pool, bps)
	payout = pool.Sub(fee).Div(decimal.NewFromInt(2)).Floor()
	if payout.IsNegative() {
		payout = decimal.Zero
	}
	if fee.Add(payout).Add(payout).GreaterThan(pool) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: pool=%s fee=%s payout=%s", ErrPayoutOverflow, pool, fee, payout)
	}
	return fee, payout, nil
}
