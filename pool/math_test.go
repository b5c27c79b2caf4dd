package pool

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickSqrtPriceRoundTrip(t *testing.T) {
	for _, tick := range []int{-887272, -500000, -70000, -1, 0, 1, 70000, 500000, 887272} {
		sqrtPrice, err := TickToSqrtPriceX96(tick)
		require.NoError(t, err)

		gotTick, err := SqrtPriceX96ToTick(sqrtPrice)
		require.NoError(t, err)
		assert.Equal(t, tick, gotTick, "sqrt_price_x96_to_tick(tick_to_sqrt_price_x96(%d))", tick)

		nextSqrtPrice, err := TickToSqrtPriceX96(tick + 1)
		if tick < MAX_TICK {
			require.NoError(t, err)
			assert.True(t, sqrtPrice.LessThanOrEqual(nextSqrtPrice))
		}
		_ = nextSqrtPrice
	}
}

func TestTickToSqrtPriceMonotonic(t *testing.T) {
	prev, err := TickToSqrtPriceX96(-1000)
	require.NoError(t, err)
	for tick := -999; tick <= 1000; tick++ {
		cur, err := TickToSqrtPriceX96(tick)
		require.NoError(t, err)
		assert.True(t, cur.GreaterThan(prev), "sqrt price must strictly increase with tick at %d", tick)
		prev = cur
	}
}

func TestGetLiquidityForAmountsBelowRange(t *testing.T) {
	sqrtLower, _ := TickToSqrtPriceX96(70000)
	sqrtUpper, _ := TickToSqrtPriceX96(71000)
	sqrtCurrent, _ := TickToSqrtPriceX96(69000) // below range

	l, err := GetLiquidityForAmounts(sqrtCurrent, sqrtLower, sqrtUpper, decimal.NewFromInt(1_000_000), decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.True(t, l.IsPositive())

	// amount1 must not matter when price is below the range: only token0 binds.
	l2, err := GetLiquidityForAmounts(sqrtCurrent, sqrtLower, sqrtUpper, decimal.NewFromInt(1_000_000), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, l.Equal(l2))
}

func TestGetLiquidityForAmountsInsideRangeTakesMinimum(t *testing.T) {
	sqrtLower, _ := TickToSqrtPriceX96(69000)
	sqrtUpper, _ := TickToSqrtPriceX96(71000)
	sqrtCurrent, _ := TickToSqrtPriceX96(70000)

	lBoth, err := GetLiquidityForAmounts(sqrtCurrent, sqrtLower, sqrtUpper, decimal.NewFromInt(1_000_000), decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	lToken0Only, err := GetLiquidityForAmounts(sqrtCurrent, sqrtLower, sqrtUpper, decimal.NewFromInt(1_000_000), decimal.NewFromInt(1_000_000_000_000))
	require.NoError(t, err)

	assert.True(t, lBoth.LessThanOrEqual(lToken0Only))
}

func TestComputeSwapStepConsistentWithAmountDeltas(t *testing.T) {
	sqrtCurrent, _ := TickToSqrtPriceX96(70000)
	sqrtTarget, _ := TickToSqrtPriceX96(69940)
	liquidity := decimal.NewFromInt(1_000_000_000)

	next, amountIn, amountOut, feeAmount, err := ComputeSwapStep(sqrtCurrent, sqrtTarget, liquidity, decimal.NewFromInt(1_000_000), FeeMedium)
	require.NoError(t, err)
	assert.True(t, amountIn.GreaterThanOrEqual(decimal.Zero))
	assert.True(t, amountOut.GreaterThanOrEqual(decimal.Zero))
	assert.True(t, feeAmount.GreaterThanOrEqual(decimal.Zero))
	assert.True(t, next.LessThanOrEqual(sqrtCurrent))
	assert.True(t, next.GreaterThanOrEqual(sqrtTarget))
}
