package entries

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chronolot/chronolot/internal/custody"
	"github.com/chronolot/chronolot/internal/raffle"
	"github.com/chronolot/chronolot/pkg/messaging"
)

const startTime = int64(1_700_000_040)

var entryFee = decimal.NewFromInt(5_000_000)

func newTestLedger() (*Ledger, *raffle.Store, *custody.Bank) {
	store := raffle.NewStore()
	bank := custody.NewBank()
	var events *messaging.Client
	return New(store, bank, events, zap.NewNop()), store, bank
}

func fundedEntrant(bank *custody.Bank, amount decimal.Decimal) uuid.UUID {
	entrant := uuid.New()
	bank.Deposit(entrant, amount)
	return entrant
}

func TestEnter(t *testing.T) {
	ctx := context.Background()

	t.Run("should round the guess, debit the fee and grow the pool", func(t *testing.T) {
		led, store, bank := newTestLedger()
		r := store.Allocate(uuid.New(), entryFee, startTime)
		entrant := fundedEntrant(bank, entryFee)

		slot, err := led.Enter(ctx, r.ID, startTime+3_599, entrant)
		require.NoError(t, err)
		assert.Equal(t, startTime+3_540, slot)

		snap, err := store.Snapshot(r.ID)
		require.NoError(t, err)
		assert.Equal(t, "5000000", snap.PrizePool)
		assert.Equal(t, 1, snap.EntryCount)
		assert.True(t, bank.Balance(entrant).IsZero())
		assert.True(t, bank.CustodyBalance().Equal(entryFee))
	})

	t.Run("pool equals fee times entries", func(t *testing.T) {
		led, store, bank := newTestLedger()
		r := store.Allocate(uuid.New(), entryFee, startTime)

		for i := int64(0); i < 4; i++ {
			entrant := fundedEntrant(bank, entryFee)
			_, err := led.Enter(ctx, r.ID, startTime+i*60, entrant)
			require.NoError(t, err)
		}

		snap, err := store.Snapshot(r.ID)
		require.NoError(t, err)
		assert.Equal(t, entryFee.Mul(decimal.NewFromInt(4)).String(), snap.PrizePool)
		assert.Equal(t, 4, snap.EntryCount)
	})

	t.Run("should reject a taken slot even via a different raw guess", func(t *testing.T) {
		led, store, bank := newTestLedger()
		r := store.Allocate(uuid.New(), entryFee, startTime)
		first := fundedEntrant(bank, entryFee)
		second := fundedEntrant(bank, entryFee)

		_, err := led.Enter(ctx, r.ID, startTime+3_600, first)
		require.NoError(t, err)

		// Same minute, different second.
		_, err = led.Enter(ctx, r.ID, startTime+3_630, second)
		assert.ErrorIs(t, err, ErrGuessTaken)

		// The loser keeps their money.
		assert.True(t, bank.Balance(second).Equal(entryFee))
	})

	t.Run("should reject guesses before the raffle start", func(t *testing.T) {
		led, store, bank := newTestLedger()
		r := store.Allocate(uuid.New(), entryFee, startTime)
		entrant := fundedEntrant(bank, entryFee)

		_, err := led.Enter(ctx, r.ID, startTime-1, entrant)
		assert.ErrorIs(t, err, ErrGuessTooEarly)
	})

	t.Run("should reject entries on a closed raffle", func(t *testing.T) {
		led, store, bank := newTestLedger()
		r := store.Allocate(uuid.New(), entryFee, startTime)
		require.NoError(t, store.With(r.ID, func(r *raffle.Raffle) error {
			r.IsOpen = false
			return nil
		}))

		_, err := led.Enter(ctx, r.ID, startTime+60, fundedEntrant(bank, entryFee))
		assert.ErrorIs(t, err, ErrRaffleClosed)
	})

	t.Run("should fail for unknown raffles", func(t *testing.T) {
		led, _, bank := newTestLedger()
		_, err := led.Enter(ctx, 42, startTime+60, fundedEntrant(bank, entryFee))
		assert.ErrorIs(t, err, raffle.ErrNotFound)
	})

	t.Run("failed debit unwinds the registration", func(t *testing.T) {
		led, store, bank := newTestLedger()
		r := store.Allocate(uuid.New(), entryFee, startTime)
		broke := uuid.New()

		_, err := led.Enter(ctx, r.ID, startTime+60, broke)
		assert.ErrorIs(t, err, custody.ErrInsufficientFunds)

		snap, err := store.Snapshot(r.ID)
		require.NoError(t, err)
		assert.Equal(t, "0", snap.PrizePool)
		assert.Equal(t, 0, snap.EntryCount)

		// The slot is free again for a funded entrant.
		funded := fundedEntrant(bank, entryFee)
		slot, err := led.Enter(ctx, r.ID, startTime+60, funded)
		require.NoError(t, err)
		assert.Equal(t, startTime+60, slot)
	})
}
