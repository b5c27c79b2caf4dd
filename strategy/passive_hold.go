package strategy

import (
	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
)

// PassiveHold opens one position across [initialPrice * (1-pct), initialPrice
// * (1+pct)] at the first event and never rebalances. If explicitTickLower/
// Upper are both set (the config's tick_lower/tick_upper override), those
// bounds are used verbatim instead of computing a range from rangePct.
type PassiveHold struct {
	rangePct    decimal.Decimal
	tickSpacing int

	explicitRange               bool
	explicitTickLower, explicitTickUpper int

	opened bool
}

func NewPassiveHold(rangePct decimal.Decimal, tickSpacing int) *PassiveHold {
	return &PassiveHold{rangePct: rangePct, tickSpacing: tickSpacing}
}

// NewPassiveHoldFixedRange builds a PassiveHold that opens exactly
// [tickLower, tickUpper] rather than deriving a range from a percentage,
// for the config's explicit tick_lower/tick_upper override.
func NewPassiveHoldFixedRange(tickLower, tickUpper int) *PassiveHold {
	return &PassiveHold{explicitRange: true, explicitTickLower: tickLower, explicitTickUpper: tickUpper}
}

func (s *PassiveHold) Name() string { return "passive_range" }

func (s *PassiveHold) OnEvent(snap Snapshot) (Action, error) {
	if s.opened {
		return Hold, nil
	}

	lower, upper := s.explicitTickLower, s.explicitTickUpper
	if !s.explicitRange {
		var err error
		lower, upper, err = priceRangeTicks(snap.Pool.SqrtPriceX96, s.rangePct, s.tickSpacing)
		if err != nil {
			return Hold, err
		}
	}

	s.opened = true
	return Action{
		Kind:       ActionOpenPosition,
		TickLower:  lower,
		TickUpper:  upper,
		Amount0Max: snap.Idle0,
		Amount1Max: snap.Idle1,
	}, nil
}

// priceRangeTicks computes the ±pct price range around the pool's current
// price, in ticks, snapped to spacing. Shared by strategies whose initial
// range is a configured percentage rather than a computed band.
func priceRangeTicks(sqrtPriceX96 decimal.Decimal, pct decimal.Decimal, tickSpacing int) (int, int, error) {
	price := rawPrice(sqrtPriceX96)
	one := decimal.NewFromInt(1)
	lowPrice := price.Mul(one.Sub(pct))
	highPrice := price.Mul(one.Add(pct))

	lowTick, err := priceToTick(lowPrice)
	if err != nil {
		return 0, 0, err
	}
	highTick, err := priceToTick(highPrice)
	if err != nil {
		return 0, 0, err
	}
	lower := snapToSpacing(lowTick, tickSpacing)
	upper := snapToSpacing(highTick, tickSpacing)
	if upper <= lower {
		upper = lower + tickSpacing
	}
	return lower, upper, nil
}

func rawPrice(sqrtPriceX96 decimal.Decimal) decimal.Decimal {
	// Mirrors valuation.RawPrice without importing the valuation package,
	// since pool is the only shared dependency strategies should take on.
	ratio := sqrtPriceX96.DivRound(pool.Q96, 40)
	return ratio.Mul(ratio)
}
