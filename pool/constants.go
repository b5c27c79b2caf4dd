// Package pool implements the tick-indexed concentrated-liquidity pool model:
// fixed-point sqrt-price/tick math, the tick map, the per-owner position
// book, and fee-growth accounting. It is a faithful, decimal-typed port of
// the Uniswap V3 core math, not a simplification of it.
package pool

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ZERO = decimal.Zero
	ONE  = decimal.NewFromInt(1)

	// Q96 and Q128 are the fixed-point scaling factors used throughout: sqrt
	// prices are Q96, fee-growth accumulators are Q128. No call site may
	// derive these by taking a square root of anything; they are constants.
	Q96  = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 96), 0)
	Q128 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), 0)

	// MIN_SQRT_RATIO and MAX_SQRT_RATIO bound the representable price range,
	// matching tick_to_sqrt_price_x96(MIN_TICK) and tick_to_sqrt_price_x96(MAX_TICK).
	MIN_SQRT_RATIO, _ = decimal.NewFromString("4295128739")
	MAX_SQRT_RATIO, _ = decimal.NewFromString("1461446703485210103287273052203988822378723970342")

	// MaxCollectable is the request amount a caller passes to Collect to mean
	// "withdraw everything owed" (the u128 max convention the V3 periphery
	// uses for collect-all), rather than a caller having to read
	// tokensOwed0/1 first.
	MaxCollectable = decimal.NewFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)), 0)
)

const (
	MIN_TICK = -887272
	MAX_TICK = 887272
)

// FeeAmount is hundredths of a bip (e.g. 3000 == 0.30%), matching the V3
// convention and the fee tiers understood by daoleno/uniswapv3-sdk/constants.
type FeeAmount uint32

const (
	FeeLow    FeeAmount = 500
	FeeMedium FeeAmount = 3000
	FeeHigh   FeeAmount = 10000
)

var tickSpacingForFee = map[FeeAmount]int{
	FeeLow:    10,
	FeeMedium: 60,
	FeeHigh:   200,
}

// TickSpacingToMaxLiquidityPerTick computes the maximum liquidity that may
// reference a single tick, so that the sum over every possible initialized
// tick never overflows u128. Ported 1:1 from the V3 core formula.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int) decimal.Decimal {
	minTick := (MIN_TICK / tickSpacing) * tickSpacing
	maxTick := (MAX_TICK / tickSpacing) * tickSpacing
	numTicks := int64((maxTick-minTick)/tickSpacing) + 1

	maxU128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	max := decimal.NewFromBigInt(maxU128, 0)
	return max.Div(decimal.NewFromInt(numTicks)).Truncate(0)
}

// AddDelta adds a signed liquidity delta to an unsigned liquidity value,
// returning an error if the result would underflow below zero. No upper
// bound is checked here, and IsOverflow does not class the underflow error
// as an overflow; the per-tick cap in TickManager.Update is what raises the
// NumericalOverflow kind.
func AddDelta(liquidity, delta decimal.Decimal) (decimal.Decimal, error) {
	result := liquidity.Add(delta)
	if result.IsNegative() {
		return ZERO, errLiquidityUnderflow
	}
	return result, nil
}

// LiquidityAddDelta is AddDelta under the name the position book uses; kept
// distinct so the two call sites (pool-wide active liquidity vs. a single
// position's liquidity) read independently even though the arithmetic is
// identical.
func LiquidityAddDelta(liquidity, delta decimal.Decimal) (decimal.Decimal, error) {
	return AddDelta(liquidity, delta)
}
