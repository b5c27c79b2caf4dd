package strategy

// alphaPhase sequences the dual-order open/rebalance cycle: the Strategy
// interface hands back one Action per event, so opening two concurrent
// positions (base + limit) and later tearing both down takes several
// consecutive OnEvent calls rather than a single atomic step.
type alphaPhase int

const (
	phaseNeedBase alphaPhase = iota
	phaseNeedLimit
	phaseSteady
	phaseCloseBase
	phaseCloseLimit
)

// AlphaVault maintains a base order (symmetric, token-balanced) and a limit
// order (one-sided, in the surplus asset), rebuilding both only every
// rebalanceInterval and never swapping to do so.
type AlphaVault struct {
	baseThreshold  int
	limitThreshold int
	rebalanceIntervalSeconds int64
	tickSpacing    int

	phase           alphaPhase
	baseLower, baseUpper   int
	limitLower, limitUpper int
	lastRebalanceTs int64
}

func NewAlphaVault(baseThreshold, limitThreshold int, rebalanceIntervalSeconds int64, tickSpacing int) *AlphaVault {
	return &AlphaVault{
		baseThreshold:            baseThreshold,
		limitThreshold:           limitThreshold,
		rebalanceIntervalSeconds: rebalanceIntervalSeconds,
		tickSpacing:              tickSpacing,
		phase:                    phaseNeedBase,
	}
}

func (s *AlphaVault) Name() string { return "alpha_vault" }

func (s *AlphaVault) OnEvent(snap Snapshot) (Action, error) {
	switch s.phase {
	case phaseNeedBase:
		lower, upper := centerRange(snap.Pool.Tick, s.baseThreshold, s.tickSpacing)
		s.baseLower, s.baseUpper = lower, upper
		s.phase = phaseNeedLimit
		s.lastRebalanceTs = snap.Timestamp
		return Action{Kind: ActionOpenPosition, TickLower: lower, TickUpper: upper, Amount0Max: snap.Idle0, Amount1Max: snap.Idle1}, nil

	case phaseNeedLimit:
		lower, upper := s.limitRange(snap)
		s.limitLower, s.limitUpper = lower, upper
		s.phase = phaseSteady
		return Action{Kind: ActionOpenPosition, TickLower: lower, TickUpper: upper, Amount0Max: snap.Idle0, Amount1Max: snap.Idle1}, nil

	case phaseSteady:
		if snap.Timestamp-s.lastRebalanceTs < s.rebalanceIntervalSeconds {
			return Hold, nil
		}
		s.phase = phaseCloseBase
		return Action{Kind: ActionClosePosition, CloseTickLower: s.baseLower, CloseTickUpper: s.baseUpper}, nil

	case phaseCloseBase:
		s.phase = phaseCloseLimit
		return Action{Kind: ActionClosePosition, CloseTickLower: s.limitLower, CloseTickUpper: s.limitUpper}, nil

	case phaseCloseLimit:
		s.phase = phaseNeedBase
		return s.OnEvent(snap)

	default:
		return Hold, nil
	}
}

// limitRange places the one-sided limit order on whichever side of the
// current tick holds the surplus asset: above the tick (token0-only) if
// idle token0 outweighs idle token1 in quote terms, below it otherwise.
func (s *AlphaVault) limitRange(snap Snapshot) (int, int) {
	price := rawPrice(snap.Pool.SqrtPriceX96)
	value0 := snap.Idle0.Mul(price)
	if value0.GreaterThan(snap.Idle1) {
		lower := snapToSpacing(snap.Pool.Tick+s.tickSpacing, s.tickSpacing)
		upper := snapToSpacing(snap.Pool.Tick+s.limitThreshold, s.tickSpacing)
		if upper <= lower {
			upper = lower + s.tickSpacing
		}
		return lower, upper
	}
	upper := snapToSpacing(snap.Pool.Tick-s.tickSpacing, s.tickSpacing)
	lower := snapToSpacing(snap.Pool.Tick-s.limitThreshold, s.tickSpacing)
	if upper <= lower {
		upper = lower + s.tickSpacing
	}
	return lower, upper
}
