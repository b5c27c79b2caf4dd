package strategy

import (
	"math"

	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
)

// priceToTick converts a raw token1-per-token0 price into the tick at or
// below it, by way of sqrt_price_x96_to_tick. Strategy-side range selection is a
// heuristic, not consensus math, so a float64 sqrt is an acceptable
// approximation here — unlike pool package math, which never leaves
// decimal space.
func priceToTick(price decimal.Decimal) (int, error) {
	f, _ := price.Float64()
	if f <= 0 {
		f = 1e-18
	}
	sqrtF := math.Sqrt(f)
	sqrtX96 := decimal.NewFromFloat(sqrtF).Mul(pool.Q96)
	return pool.SqrtPriceX96ToTick(sqrtX96)
}

// snapToSpacing floors tick to the nearest multiple of spacing at or below
// it, matching Uniswap's tick-spacing snapping convention.
func snapToSpacing(tick, spacing int) int {
	if spacing <= 0 {
		return tick
	}
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

// centerRange returns the [lower, upper] ticks of a symmetric range of
// halfWidth ticks around centerTick, snapped to spacing.
func centerRange(centerTick, halfWidth, spacing int) (int, int) {
	lower := snapToSpacing(centerTick-halfWidth, spacing)
	upper := snapToSpacing(centerTick+halfWidth, spacing)
	if upper <= lower {
		upper = lower + spacing
	}
	return lower, upper
}
