package pool

import (
	"fmt"

	"github.com/daoleno/uniswapv3-sdk/constants"
	"github.com/daoleno/uniswapv3-sdk/utils"
	"github.com/shopspring/decimal"
)

// TickToSqrtPriceX96 returns sqrt(1.0001^tick) * 2^96, using the SDK's
// table-driven bit decomposition (k=0..19). Every sqrt-price this package
// produces from a tick comes through here — never through a reconstructed
// display price.
func TickToSqrtPriceX96(tick int) (decimal.Decimal, error) {
	r, err := utils.GetSqrtRatioAtTick(tick)
	if err != nil {
		return ZERO, fmt.Errorf("tick_to_sqrt_price_x96(%d): %w", tick, err)
	}
	return decimal.NewFromBigInt(r, 0), nil
}

// SqrtPriceX96ToTick is the inverse of TickToSqrtPriceX96: the largest tick
// T such that TickToSqrtPriceX96(T) <= sqrtPriceX96.
func SqrtPriceX96ToTick(sqrtPriceX96 decimal.Decimal) (int, error) {
	// The SDK only accepts sqrt prices strictly below MAX_SQRT_RATIO, which
	// is TickToSqrtPriceX96(MAX_TICK) itself.
	if sqrtPriceX96.Equal(MAX_SQRT_RATIO) {
		return MAX_TICK, nil
	}
	t, err := utils.GetTickAtSqrtRatio(sqrtPriceX96.BigInt())
	if err != nil {
		return 0, fmt.Errorf("sqrt_price_x96_to_tick(%s): %w", sqrtPriceX96, err)
	}
	return t, nil
}

// GetAmount0Delta returns the amount of token0 corresponding to a given
// liquidity delta between two sqrt prices. roundUp must be true for minting
// (the LP must supply at least enough) and false for burning.
func GetAmount0Delta(sqrtA, sqrtB, liquidity decimal.Decimal, roundUp bool) (decimal.Decimal, error) {
	if sqrtA.GreaterThan(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	amt, err := utils.GetAmount0Delta(sqrtA.BigInt(), sqrtB.BigInt(), liquidity.BigInt(), roundUp)
	if err != nil {
		return ZERO, fmt.Errorf("get_amount0_delta: %w", err)
	}
	return decimal.NewFromBigInt(amt, 0), nil
}

// GetAmount1Delta is GetAmount0Delta's token1 counterpart.
func GetAmount1Delta(sqrtA, sqrtB, liquidity decimal.Decimal, roundUp bool) (decimal.Decimal, error) {
	if sqrtA.GreaterThan(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	amt, err := utils.GetAmount1Delta(sqrtA.BigInt(), sqrtB.BigInt(), liquidity.BigInt(), roundUp)
	if err != nil {
		return ZERO, fmt.Errorf("get_amount1_delta: %w", err)
	}
	return decimal.NewFromBigInt(amt, 0), nil
}

// amount0DeltaSigned/amount1DeltaSigned wrap the above with the rounding
// direction implied by the sign of liquidityDelta, matching the position
// book's modifyPosition: minting (delta > 0) rounds in the pool's favor
// (up), burning (delta < 0) rounds down.
func amount0DeltaSigned(sqrtA, sqrtB, liquidityDelta decimal.Decimal) (decimal.Decimal, error) {
	amt, err := GetAmount0Delta(sqrtA, sqrtB, liquidityDelta.Abs(), liquidityDelta.IsPositive())
	if err != nil {
		return ZERO, err
	}
	if liquidityDelta.IsNegative() {
		return amt.Neg(), nil
	}
	return amt, nil
}

func amount1DeltaSigned(sqrtA, sqrtB, liquidityDelta decimal.Decimal) (decimal.Decimal, error) {
	amt, err := GetAmount1Delta(sqrtA, sqrtB, liquidityDelta.Abs(), liquidityDelta.IsPositive())
	if err != nil {
		return ZERO, err
	}
	if liquidityDelta.IsNegative() {
		return amt.Neg(), nil
	}
	return amt, nil
}

// ComputeSwapStep delegates to the SDK's single-step swap math. The replay
// path does not call it: ApplySwap derives the fee from the event's input
// amount and takes the event's reported post-state as authoritative.
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining decimal.Decimal, feeTier FeeAmount) (sqrtRatioNextX96, amountIn, amountOut, feeAmount decimal.Decimal, err error) {
	next, in, out, fee, e := utils.ComputeSwapStep(
		sqrtRatioCurrentX96.BigInt(),
		sqrtRatioTargetX96.BigInt(),
		liquidity.BigInt(),
		amountRemaining.BigInt(),
		constants.FeeAmount(feeTier),
	)
	if e != nil {
		return ZERO, ZERO, ZERO, ZERO, fmt.Errorf("compute_swap_step: %w", e)
	}
	return decimal.NewFromBigInt(next, 0), decimal.NewFromBigInt(in, 0), decimal.NewFromBigInt(out, 0), decimal.NewFromBigInt(fee, 0), nil
}

// GetLiquidityForAmounts is the mint-sizing formula: given the pool's
// current sqrt price and a target range, the maximum liquidity that
// can be backed by at most (amount0, amount1). The three cases — current
// price below, inside, or above the range — each reduce to the inverse of
// GetAmount{0,1}Delta; when both tokens bind, the minimum of the two
// candidate liquidities is returned.
func GetLiquidityForAmounts(sqrtP, sqrtLow, sqrtHi, amount0, amount1 decimal.Decimal) (decimal.Decimal, error) {
	if sqrtLow.GreaterThan(sqrtHi) {
		sqrtLow, sqrtHi = sqrtHi, sqrtLow
	}
	switch {
	case sqrtP.LessThanOrEqual(sqrtLow):
		return liquidityForAmount0(sqrtLow, sqrtHi, amount0), nil
	case sqrtP.LessThan(sqrtHi):
		l0 := liquidityForAmount0(sqrtP, sqrtHi, amount0)
		l1 := liquidityForAmount1(sqrtLow, sqrtP, amount1)
		if l0.LessThan(l1) {
			return l0, nil
		}
		return l1, nil
	default:
		return liquidityForAmount1(sqrtLow, sqrtHi, amount1), nil
	}
}

// liquidityForAmount0 inverts GetAmount0Delta for amount0 = L*(sqrtB-sqrtA)*Q96/(sqrtA*sqrtB):
// L = amount0 * sqrtA * sqrtB / Q96 / (sqrtB - sqrtA).
func liquidityForAmount0(sqrtA, sqrtB, amount0 decimal.Decimal) decimal.Decimal {
	if sqrtA.GreaterThan(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtB.Equal(sqrtA) {
		return ZERO
	}
	intermediate := sqrtA.Mul(sqrtB).Div(Q96).Truncate(0)
	return amount0.Mul(intermediate).Div(sqrtB.Sub(sqrtA)).Truncate(0)
}

// liquidityForAmount1 inverts GetAmount1Delta for amount1 = L*(sqrtB-sqrtA)/Q96:
// L = amount1 * Q96 / (sqrtB - sqrtA).
func liquidityForAmount1(sqrtA, sqrtB, amount1 decimal.Decimal) decimal.Decimal {
	if sqrtA.GreaterThan(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtB.Equal(sqrtA) {
		return ZERO
	}
	return amount1.Mul(Q96).Div(sqrtB.Sub(sqrtA)).Truncate(0)
}
