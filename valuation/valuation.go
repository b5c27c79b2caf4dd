// Package valuation converts pool positions and idle reserves into a
// consistent quote-denominated (token1) value at any instant, and derives
// impermanent loss against a buy-and-hold baseline.
package valuation

import (
	core "github.com/daoleno/uniswap-sdk-core/entities"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
)

// AmountsForPosition returns the (amount0, amount1) a position of the given
// liquidity and range would convert to at sqrtPriceX96, using the standard
// three-case in-range/below-range/above-range split.
func AmountsForPosition(liquidity decimal.Decimal, tickLower, tickUpper int, sqrtPriceX96 decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	sqrtLower, err := pool.TickToSqrtPriceX96(tickLower)
	if err != nil {
		return pool.ZERO, pool.ZERO, err
	}
	sqrtUpper, err := pool.TickToSqrtPriceX96(tickUpper)
	if err != nil {
		return pool.ZERO, pool.ZERO, err
	}

	switch {
	case sqrtPriceX96.LessThanOrEqual(sqrtLower):
		amount0, err := pool.GetAmount0Delta(sqrtLower, sqrtUpper, liquidity, false)
		return amount0, pool.ZERO, err
	case sqrtPriceX96.LessThan(sqrtUpper):
		amount0, err := pool.GetAmount0Delta(sqrtPriceX96, sqrtUpper, liquidity, false)
		if err != nil {
			return pool.ZERO, pool.ZERO, err
		}
		amount1, err := pool.GetAmount1Delta(sqrtLower, sqrtPriceX96, liquidity, false)
		return amount0, amount1, err
	default:
		amount1, err := pool.GetAmount1Delta(sqrtLower, sqrtUpper, liquidity, false)
		return pool.ZERO, amount1, err
	}
}

// RawPrice returns (sqrtPriceX96/2^96)^2: token1-per-token0 in raw,
// undecimated units. It is the only place in this package a sqrt price is
// squared back into a price; every other computation stays in sqrt-price
// space.
func RawPrice(sqrtPriceX96 decimal.Decimal) decimal.Decimal {
	ratio := sqrtPriceX96.DivRound(pool.Q96, 40)
	return ratio.Mul(ratio)
}

// NewDisplayToken wraps a configured decimals count into the uniswap-sdk-core
// Token entity DisplayPrice consumes. Address/symbol/name carry no meaning
// for an off-chain backtest pair — only Decimals() is ever read back off it
// — so they're left zero/empty rather than threading a real pair address
// through config just to satisfy the constructor.
func NewDisplayToken(decimals int) *core.Token {
	return core.NewToken(1, common.Address{}, uint(decimals), "", "")
}

// DisplayPrice scales a raw price by 10^(token0.Decimals()-token1.Decimals())
// to the human-display price. Decimals are read off uniswap-sdk-core Token
// entities rather than bare ints so the same Token values the backtest
// driver constructs once (via NewDisplayToken) can also be handed to other SDK-aware call
// sites without re-deriving them.
func DisplayPrice(rawPrice decimal.Decimal, token0, token1 *core.Token) decimal.Decimal {
	shift := int32(token0.Decimals()) - int32(token1.Decimals())
	if shift == 0 {
		return rawPrice
	}
	scale := decimal.New(1, shift)
	return rawPrice.Mul(scale)
}

// QuoteValue converts (amount0, amount1) into token1 (quote) units at the
// given sqrt price: amount1 + amount0 * price(s).
func QuoteValue(amount0, amount1, sqrtPriceX96 decimal.Decimal) decimal.Decimal {
	price := RawPrice(sqrtPriceX96)
	return amount1.Add(amount0.Mul(price))
}

// PositionValue is the quote value of a single in-range-or-out position,
// including any uncollected owed tokens, at the current price.
func PositionValue(p *pool.Position, sqrtPriceX96 decimal.Decimal) (decimal.Decimal, error) {
	amount0, amount1, err := AmountsForPosition(p.Liquidity, p.Key.TickLower, p.Key.TickUpper, sqrtPriceX96)
	if err != nil {
		return pool.ZERO, err
	}
	amount0 = amount0.Add(p.TokensOwed0)
	amount1 = amount1.Add(p.TokensOwed1)
	return QuoteValue(amount0, amount1, sqrtPriceX96), nil
}

// PortfolioValue sums the quote value of every position plus idle reserves.
func PortfolioValue(positions []*pool.Position, idle0, idle1, sqrtPriceX96 decimal.Decimal) (decimal.Decimal, error) {
	total := QuoteValue(idle0, idle1, sqrtPriceX96)
	for _, p := range positions {
		v, err := PositionValue(p, sqrtPriceX96)
		if err != nil {
			return pool.ZERO, err
		}
		total = total.Add(v)
	}
	return total, nil
}

// ImpermanentLoss is (LPValueExcludingFees - HodlValue) / HodlValue, where
// HodlValue revalues the strategy's initial (amount0, amount1) split at the
// current price.
func ImpermanentLoss(lpValueExcludingFees decimal.Decimal, initialAmount0, initialAmount1, sqrtPriceX96 decimal.Decimal) decimal.Decimal {
	hodlValue := QuoteValue(initialAmount0, initialAmount1, sqrtPriceX96)
	if hodlValue.IsZero() {
		return pool.ZERO
	}
	return lpValueExcludingFees.Sub(hodlValue).Div(hodlValue)
}
