package strategy

import "github.com/shopspring/decimal"

// Bollinger (Steer Elastic) tracks a range [SMA - k*stddev, SMA + k*stddev]
// in price space, rebuilding whenever either band has moved by more than
// minWidthTicks since the last rebuild. It is expected to trade far more
// often than FixedWidth on volatile data.
type Bollinger struct {
	period       int
	stdMultiplier decimal.Decimal
	minWidthTicks int
	tickSpacing   int

	haveRange bool
	tickLower int
	tickUpper int
}

func NewBollinger(period int, stdMultiplier decimal.Decimal, minWidthTicks, tickSpacing int) *Bollinger {
	return &Bollinger{period: period, stdMultiplier: stdMultiplier, minWidthTicks: minWidthTicks, tickSpacing: tickSpacing}
}

func (s *Bollinger) Name() string { return "bollinger" }

func (s *Bollinger) OnEvent(snap Snapshot) (Action, error) {
	sma, ok := snap.Indicators.SMA(s.period)
	if !ok {
		return Hold, nil
	}
	std, ok := snap.Indicators.StdDev(s.period)
	if !ok {
		return Hold, nil
	}

	band := std.Mul(s.stdMultiplier)
	lowPrice := sma.Sub(band)
	highPrice := sma.Add(band)
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
	newLower := snapToSpacing(lowTick, s.tickSpacing)
	newUpper := snapToSpacing(highTick, s.tickSpacing)
	if newUpper <= newLower {
		newUpper = newLower + s.tickSpacing
	}

	if !s.haveRange {
		s.tickLower, s.tickUpper = newLower, newUpper
		s.haveRange = true
		return Action{Kind: ActionOpenPosition, TickLower: newLower, TickUpper: newUpper, Amount0Max: snap.Idle0, Amount1Max: snap.Idle1}, nil
	}

	movedLower := abs(newLower - s.tickLower)
	movedUpper := abs(newUpper - s.tickUpper)
	if movedLower <= s.minWidthTicks && movedUpper <= s.minWidthTicks {
		return Hold, nil
	}

	action := Action{
		Kind:           ActionRebalance,
		TickLower:      newLower,
		TickUpper:      newUpper,
		CloseTickLower: s.tickLower,
		CloseTickUpper: s.tickUpper,
	}
	s.tickLower, s.tickUpper = newLower, newUpper
	return action, nil
}
