package strategy

import (
	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
)

// ATRDynamicRange recenters its range to P ± k*ATR whenever price either
// leaves the current range, or deviates from the range's center by more
// than deviationThreshold with minRebalanceInterval elapsed since the last
// rebalance. It stays in Hold until the snapshot's indicator window reports
// ATR ready; that window's seed period is fixed by indicator.NewWindow (the
// backtest driver builds it from the same atr_period this strategy gets).
type ATRDynamicRange struct {
	period               int
	multiplier           decimal.Decimal
	deviationThreshold   decimal.Decimal
	minRebalanceInterval int64
	tickSpacing          int

	haveRange        bool
	tickLower        int
	tickUpper        int
	lastRebalanceTs  int64
}

func NewATRDynamicRange(period int, multiplier, deviationThreshold decimal.Decimal, minRebalanceInterval int64, tickSpacing int) *ATRDynamicRange {
	return &ATRDynamicRange{
		period:               period,
		multiplier:           multiplier,
		deviationThreshold:   deviationThreshold,
		minRebalanceInterval: minRebalanceInterval,
		tickSpacing:          tickSpacing,
	}
}

func (s *ATRDynamicRange) Name() string { return "atr" }

func (s *ATRDynamicRange) OnEvent(snap Snapshot) (Action, error) {
	atr, ready := snap.Indicators.ATR()
	if !ready {
		return Hold, nil
	}

	price := rawPrice(snap.Pool.SqrtPriceX96)

	if !s.haveRange {
		return s.rebalanceTo(snap, price, atr)
	}

	tick := snap.Pool.Tick
	outOfRange := tick < s.tickLower || tick >= s.tickUpper

	center := (s.tickLower + s.tickUpper) / 2
	centerPrice, err := tickMidpointPrice(center)
	if err != nil {
		return Hold, err
	}
	deviation := price.Sub(centerPrice).Abs().Div(centerPrice)
	intervalElapsed := snap.Timestamp-s.lastRebalanceTs >= s.minRebalanceInterval

	if outOfRange || (deviation.GreaterThan(s.deviationThreshold) && intervalElapsed) {
		return s.rebalanceTo(snap, price, atr)
	}
	return Hold, nil
}

func (s *ATRDynamicRange) rebalanceTo(snap Snapshot, price, atr decimal.Decimal) (Action, error) {
	band := atr.Mul(s.multiplier)
	lowPrice := price.Sub(band)
	highPrice := price.Add(band)
	if !lowPrice.IsPositive() {
		lowPrice = decimal.New(1, -18)
	}

	lowTick, err := priceToTick(lowPrice)
	if err != nil {
		return Hold, err
	}
	highTick, err := priceToTick(highPrice)
	if err != nil {
		return Hold, err
	}
	lower := snapToSpacing(lowTick, s.tickSpacing)
	upper := snapToSpacing(highTick, s.tickSpacing)
	if upper <= lower {
		upper = lower + s.tickSpacing
	}

	action := Action{Kind: ActionRebalance, TickLower: lower, TickUpper: upper}
	if s.haveRange {
		action.CloseTickLower, action.CloseTickUpper = s.tickLower, s.tickUpper
	} else {
		action.Kind = ActionOpenPosition
		action.Amount0Max, action.Amount1Max = snap.Idle0, snap.Idle1
	}

	s.tickLower, s.tickUpper = lower, upper
	s.haveRange = true
	s.lastRebalanceTs = snap.Timestamp
	return action, nil
}

func tickMidpointPrice(tick int) (decimal.Decimal, error) {
	sqrtX96, err := pool.TickToSqrtPriceX96(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return rawPrice(sqrtX96), nil
}
