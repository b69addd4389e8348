package resolver

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronolot/chronolot/internal/raffle"
)

const startTime = int64(1_700_000_040)

func newContest(t *testing.T, slots map[int64]uuid.UUID) *raffle.Raffle {
	t.Helper()
	store := raffle.NewStore()
	r := store.Allocate(uuid.New(), decimal.NewFromInt(5_000_000), startTime)
	for slot, entrant := range slots {
		require.True(t, r.SetEntrant(slot, entrant))
	}
	return r
}

func TestResolve(t *testing.T) {
	t.Run("exact slot beats a nearer later entry", func(t *testing.T) {
		exact, later := uuid.New(), uuid.New()
		r := newContest(t, map[int64]uuid.UUID{
			startTime + 3_540: exact,
			startTime + 3_600: later,
		})

		// 3545s after start rounds into the 3540 slot.
		winner, err := New(0).Resolve(r, startTime+3_545)
		require.NoError(t, err)
		assert.Equal(t, exact, winner)
	})

	t.Run("walks backward to the closest earlier entry", func(t *testing.T) {
		early := uuid.New()
		r := newContest(t, map[int64]uuid.UUID{
			startTime + 3_600: early,
			startTime + 7_200: uuid.New(),
		})

		// Nothing at 3720 or 3660; the walk lands on 3600. The 7200
		// entry is later than the winning time and never considered.
		winner, err := New(0).Resolve(r, startTime+3_720)
		require.NoError(t, err)
		assert.Equal(t, early, winner)
	})

	t.Run("the start slot is reachable", func(t *testing.T) {
		first := uuid.New()
		r := newContest(t, map[int64]uuid.UUID{startTime: first})

		winner, err := New(0).Resolve(r, startTime+600)
		require.NoError(t, err)
		assert.Equal(t, first, winner)
	})

	t.Run("no entry at or before the winning time", func(t *testing.T) {
		r := newContest(t, map[int64]uuid.UUID{startTime + 3_600: uuid.New()})

		_, err := New(0).Resolve(r, startTime+3_000)
		assert.ErrorIs(t, err, ErrNoWinner)
	})

	t.Run("empty contest has no winner", func(t *testing.T) {
		r := newContest(t, nil)
		_, err := New(0).Resolve(r, startTime+600)
		assert.ErrorIs(t, err, ErrNoWinner)
	})

	t.Run("refuses winning times beyond the step budget", func(t *testing.T) {
		r := newContest(t, map[int64]uuid.UUID{startTime: uuid.New()})
		res := New(10)

		// Exactly at budget is fine.
		_, err := res.Resolve(r, startTime+10*raffle.SlotSeconds)
		assert.NoError(t, err)

		// One slot past it is not, even though an entry exists in range.
		_, err = res.Resolve(r, startTime+11*raffle.SlotSeconds)
		assert.ErrorIs(t, err, ErrScanBudget)
	})

	t.Run("non-positive budget falls back to the default", func(t *testing.T) {
		r := newContest(t, map[int64]uuid.UUID{startTime: uuid.New()})

		winner, err := New(-1).Resolve(r, startTime+100*raffle.SlotSeconds)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, winner)
	})
}
