package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chronolot/chronolot/internal/raffle"
	"github.com/chronolot/chronolot/pkg/clock"
	"github.com/chronolot/chronolot/pkg/messaging"
)

func newTestRegistry(now int64) (*Registry, *raffle.Store) {
	store := raffle.NewStore()
	var events *messaging.Client
	return New(store, clock.NewManual(now), events, zap.NewNop()), store
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("should open a raffle stamped with the current time", func(t *testing.T) {
		reg, store := newTestRegistry(1_700_000_040)
		beneficiary := uuid.New()

		id, err := reg.Create(ctx, beneficiary, decimal.NewFromInt(5_000_000))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)

		snap, err := store.Snapshot(id)
		require.NoError(t, err)
		assert.True(t, snap.IsOpen)
		assert.Equal(t, int64(1_700_000_040), snap.StartTime)
		assert.Equal(t, beneficiary, snap.Beneficiary)
	})

	t.Run("should issue sequential ids", func(t *testing.T) {
		reg, _ := newTestRegistry(1_700_000_040)
		for want := uint64(1); want <= 3; want++ {
			id, err := reg.Create(ctx, uuid.New(), decimal.NewFromInt(5_000_000))
			require.NoError(t, err)
			assert.Equal(t, want, id)
		}
		assert.Equal(t, uint64(3), reg.Count())
	})

	t.Run("should reject a nil beneficiary", func(t *testing.T) {
		reg, _ := newTestRegistry(1_700_000_040)
		_, err := reg.Create(ctx, uuid.Nil, decimal.NewFromInt(5_000_000))
		assert.ErrorIs(t, err, ErrInvalidBeneficiary)
	})

	t.Run("should reject fees at or below one whole unit", func(t *testing.T) {
		reg, _ := newTestRegistry(1_700_000_040)

		_, err := reg.Create(ctx, uuid.New(), decimal.NewFromInt(990_000))
		assert.ErrorIs(t, err, ErrEntryFeeTooLow)

		// The bound is exclusive.
		_, err = reg.Create(ctx, uuid.New(), decimal.NewFromInt(1_000_000))
		assert.ErrorIs(t, err, ErrEntryFeeTooLow)

		_, err = reg.Create(ctx, uuid.New(), decimal.NewFromInt(1_000_001))
		assert.NoError(t, err)
	})

	t.Run("should reject fractional and negative fees", func(t *testing.T) {
		reg, _ := newTestRegistry(1_700_000_040)

		frac, err := decimal.NewFromString("5000000.5")
		require.NoError(t, err)
		_, err = reg.Create(ctx, uuid.New(), frac)
		assert.ErrorIs(t, err, ErrEntryFeeTooLow)

		_, err = reg.Create(ctx, uuid.New(), decimal.NewFromInt(-5_000_000))
		assert.ErrorIs(t, err, ErrEntryFeeTooLow)
	})
}

func TestEntrantAt(t *testing.T) {
	ctx := context.Background()

	t.Run("should round the queried slot", func(t *testing.T) {
		reg, store := newTestRegistry(1_700_000_040)
		id, err := reg.Create(ctx, uuid.New(), decimal.NewFromInt(5_000_000))
		require.NoError(t, err)

		entrant := uuid.New()
		require.NoError(t, store.With(id, func(r *raffle.Raffle) error {
			require.True(t, r.SetEntrant(1_700_003_640, entrant))
			return nil
		}))

		got, ok, err := reg.EntrantAt(id, 1_700_003_699)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, entrant, got)
	})

	t.Run("should report missing slots and raffles", func(t *testing.T) {
		reg, _ := newTestRegistry(1_700_000_040)
		id, err := reg.Create(ctx, uuid.New(), decimal.NewFromInt(5_000_000))
		require.NoError(t, err)

		_, ok, err := reg.EntrantAt(id, 1_700_003_640)
		require.NoError(t, err)
		assert.False(t, ok)

		_, _, err = reg.EntrantAt(999, 1_700_003_640)
		assert.ErrorIs(t, err, raffle.ErrNotFound)
	})
}
