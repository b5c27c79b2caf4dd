package strategy

import "github.com/shopspring/decimal"

// FixedWidth (Steer Classic) holds a single position of fixed tick width,
// recentered whenever the current tick deviates from the position's center
// by more than rebalanceThresholdBps.
type FixedWidth struct {
	widthTicks           int
	rebalanceThresholdBp decimal.Decimal
	tickSpacing          int

	haveRange bool
	tickLower int
	tickUpper int
}

func NewFixedWidth(widthTicks int, rebalanceThresholdBps decimal.Decimal, tickSpacing int) *FixedWidth {
	return &FixedWidth{widthTicks: widthTicks, rebalanceThresholdBp: rebalanceThresholdBps, tickSpacing: tickSpacing}
}

func (s *FixedWidth) Name() string { return "fixed_width" }

func (s *FixedWidth) OnEvent(snap Snapshot) (Action, error) {
	if !s.haveRange {
		lower, upper := centerRange(snap.Pool.Tick, s.widthTicks/2, s.tickSpacing)
		s.tickLower, s.tickUpper = lower, upper
		s.haveRange = true
		return Action{Kind: ActionOpenPosition, TickLower: lower, TickUpper: upper, Amount0Max: snap.Idle0, Amount1Max: snap.Idle1}, nil
	}

	center := (s.tickLower + s.tickUpper) / 2
	tick := snap.Pool.Tick
	deviationTicks := decimal.NewFromInt(int64(abs(tick - center)))
	thresholdTicks := decimal.NewFromInt(int64(s.widthTicks)).Mul(s.rebalanceThresholdBp).Div(decimal.NewFromInt(10_000))

	if deviationTicks.LessThanOrEqual(thresholdTicks) {
		return Hold, nil
	}

	newLower, newUpper := centerRange(tick, s.widthTicks/2, s.tickSpacing)
	action := Action{
		Kind:            ActionRebalance,
		TickLower:       newLower,
		TickUpper:       newUpper,
		CloseTickLower:  s.tickLower,
		CloseTickUpper:  s.tickUpper,
	}
	s.tickLower, s.tickUpper = newLower, newUpper
	return action, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
