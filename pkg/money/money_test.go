package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("should accept integral non-negative amounts", func(t *testing.T) {
		assert.NoError(t, Validate(decimal.Zero))
		assert.NoError(t, Validate(decimal.NewFromInt(1)))
		assert.NoError(t, Validate(decimal.NewFromInt(5_000_000)))
	})

	t.Run("should reject negative amounts", func(t *testing.T) {
		assert.ErrorIs(t, Validate(decimal.NewFromInt(-1)), ErrInvalidAmount)
	})

	t.Run("should reject fractional amounts", func(t *testing.T) {
		frac, err := decimal.NewFromString("100.5")
		require.NoError(t, err)
		assert.ErrorIs(t, Validate(frac), ErrInvalidAmount)
	})
}

func TestValidateFeeBps(t *testing.T) {
	t.Run("should accept the full range including both bounds", func(t *testing.T) {
		assert.NoError(t, ValidateFeeBps(0))
		assert.NoError(t, ValidateFeeBps(500))
		assert.NoError(t, ValidateFeeBps(MaxFeeBps))
	})

	t.Run("should reject out-of-range values", func(t *testing.T) {
		assert.ErrorIs(t, ValidateFeeBps(-1), ErrFeeBpsRange)
		assert.ErrorIs(t, ValidateFeeBps(MaxFeeBps+1), ErrFeeBpsRange)
	})
}

func TestFee(t *testing.T) {
	t.Run("should round the cut down", func(t *testing.T) {
		// 5% of 10,000,000 is exact.
		assert.True(t, Fee(decimal.NewFromInt(10_000_000), 500).Equal(decimal.NewFromInt(500_000)))
		// 2.5% of 999 would be 24.975; floor to 24.
		assert.True(t, Fee(decimal.NewFromInt(999), 250).Equal(decimal.NewFromInt(24)))
	})

	t.Run("zero bps charges nothing", func(t *testing.T) {
		assert.True(t, Fee(decimal.NewFromInt(10_000_000), 0).IsZero())
	})
}

func TestSplit(t *testing.T) {
	t.Run("should halve the remainder after the fee", func(t *testing.T) {
		fee, payout, err := Split(decimal.NewFromInt(10_000_000), 500)
		require.NoError(t, err)
		assert.True(t, fee.Equal(decimal.NewFromInt(500_000)))
		assert.True(t, payout.Equal(decimal.NewFromInt(4_750_000)))
	})

	t.Run("should floor an odd remainder", func(t *testing.T) {
		fee, payout, err := Split(decimal.NewFromInt(101), 0)
		require.NoError(t, err)
		assert.True(t, fee.IsZero())
		assert.True(t, payout.Equal(decimal.NewFromInt(50)))
	})

	t.Run("full fee leaves nothing to pay out", func(t *testing.T) {
		fee, payout, err := Split(decimal.NewFromInt(10_000_000), MaxFeeBps)
		require.NoError(t, err)
		assert.True(t, fee.Equal(decimal.NewFromInt(10_000_000)))
		assert.True(t, payout.IsZero())
	})

	t.Run("legs never overdraw the pool", func(t *testing.T) {
		pools := []int64{0, 1, 2, 3, 99, 100, 101, 9_999_999, 10_000_000}
		bps := []int64{0, 1, 250, 500, 9_999, MaxFeeBps}
		for _, p := range pools {
			for _, b := range bps {
				pool := decimal.NewFromInt(p)
				fee, payout, err := Split(pool, b)
				require.NoError(t, err)
				total := fee.Add(payout).Add(payout)
				assert.True(t, total.LessThanOrEqual(pool),
					"pool=%d bps=%d fee=%s payout=%s", p, b, fee, payout)
			}
		}
	})
}
