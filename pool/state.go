package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PoolState is the pool model: tick-indexed liquidity, the current
// sqrt-price/tick, and global fee growth. One PoolState is created per
// backtest run; comparing strategies clones it so each run owns its own
// mutable copy.
type PoolState struct {
	SqrtPriceX96         decimal.Decimal
	Tick                 int
	Liquidity            decimal.Decimal
	FeeGrowthGlobal0X128 decimal.Decimal
	FeeGrowthGlobal1X128 decimal.Decimal
	FeeTier              FeeAmount
	TickSpacing          int
	MaxLiquidityPerTick  decimal.Decimal

	Ticks     *TickManager
	Positions *PositionManager

	// ProtocolFeeNumerator is optional and zero by default; the core never
	// takes a protocol cut, it is carried purely so a future component can
	// read it without a schema change.
	ProtocolFeeNumerator [2]uint8

	initialized bool
}

// NewPoolState constructs an uninitialized pool for the given fee tier and
// tick spacing. Call Initialize before any Mint/Burn/Swap.
func NewPoolState(feeTier FeeAmount, tickSpacing int) *PoolState {
	return &PoolState{
		Liquidity:            ZERO,
		FeeGrowthGlobal0X128: ZERO,
		FeeGrowthGlobal1X128: ZERO,
		FeeTier:              feeTier,
		TickSpacing:          tickSpacing,
		MaxLiquidityPerTick:  TickSpacingToMaxLiquidityPerTick(tickSpacing),
		Ticks:                NewTickManager(),
		Positions:            NewPositionManager(),
	}
}

func (p *PoolState) Clone() *PoolState {
	c := *p
	c.Ticks = p.Ticks.Clone()
	c.Positions = p.Positions.Clone()
	return &c
}

// Initialize bootstraps the pool's starting price. It is idempotent when
// called again with identical arguments (the common case: the first event
// in a stream that carries a sqrtPriceX96 bootstraps the pool, and nothing
// stops a caller from calling Initialize again defensively) and returns an
// error if called with different arguments after the pool is already live.
func (p *PoolState) Initialize(sqrtPriceX96 decimal.Decimal, feeTier FeeAmount, tickSpacing int) error {
	if p.initialized {
		if p.SqrtPriceX96.Equal(sqrtPriceX96) && p.FeeTier == feeTier && p.TickSpacing == tickSpacing {
			return nil
		}
		return errAlreadyInit
	}
	tick, err := SqrtPriceX96ToTick(sqrtPriceX96)
	if err != nil {
		return err
	}
	p.SqrtPriceX96 = sqrtPriceX96
	p.Tick = tick
	p.FeeTier = feeTier
	p.TickSpacing = tickSpacing
	p.MaxLiquidityPerTick = TickSpacingToMaxLiquidityPerTick(tickSpacing)
	p.initialized = true
	return nil
}

func (p *PoolState) Initialized() bool { return p.initialized }

func (p *PoolState) checkTicks(tickLower, tickUpper int) error {
	if tickLower >= tickUpper {
		return errInvalidTicks
	}
	if tickLower < MIN_TICK || tickUpper > MAX_TICK {
		return errInvalidTicks
	}
	return nil
}

// Mint adds liquidity to [tickLower, tickUpper] owned by owner, returning
// the token amounts the LP must supply.
func (p *PoolState) Mint(owner common.Address, tickLower, tickUpper int, liquidity decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !p.initialized {
		return ZERO, ZERO, errNotInitialized
	}
	if !liquidity.IsPositive() {
		return ZERO, ZERO, errZeroLiquidity
	}
	_, amount0, amount1, err := p.modifyPosition(owner, tickLower, tickUpper, liquidity)
	if err != nil {
		return ZERO, ZERO, err
	}
	return amount0, amount1, nil
}

// Burn removes liquidity from [tickLower, tickUpper], crediting the freed
// token amounts (plus any settled fees) as tokensOwed on the position —
// Collect must still be called to realize them, matching V3 semantics.
func (p *PoolState) Burn(owner common.Address, tickLower, tickUpper int, liquidity decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !p.initialized {
		return ZERO, ZERO, errNotInitialized
	}
	if !liquidity.IsPositive() {
		return ZERO, ZERO, errZeroLiquidity
	}
	position, amount0, amount1, err := p.modifyPosition(owner, tickLower, tickUpper, liquidity.Neg())
	if err != nil {
		return ZERO, ZERO, err
	}
	amount0 = amount0.Neg()
	amount1 = amount1.Neg()
	if amount0.IsPositive() || amount1.IsPositive() {
		position.TokensOwed0 = position.TokensOwed0.Add(amount0)
		position.TokensOwed1 = position.TokensOwed1.Add(amount1)
	}
	return amount0, amount1, nil
}

// Collect withdraws up to (amount0Req, amount1Req) of a position's owed
// tokens.
func (p *PoolState) Collect(owner common.Address, tickLower, tickUpper int, amount0Req, amount1Req decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return ZERO, ZERO, err
	}
	key := PositionKey{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
	position := p.Positions.GetPositionAndInitIfAbsent(key)
	amount0, amount1 := position.Collect(amount0Req, amount1Req)
	if position.IsEmpty() {
		p.Positions.remove(key)
	}
	return amount0, amount1, nil
}

func (p *PoolState) modifyPosition(owner common.Address, tickLower, tickUpper int, liquidityDelta decimal.Decimal) (*Position, decimal.Decimal, decimal.Decimal, error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, ZERO, ZERO, err
	}

	key := PositionKey{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
	if liquidityDelta.IsNegative() {
		existing := p.Positions.GetPositionReadonly(key)
		if existing.Liquidity.LessThan(liquidityDelta.Abs()) {
			return nil, ZERO, ZERO, errLiquidityUnderflow
		}
	}

	position, err := p.updatePosition(key, liquidityDelta)
	if err != nil {
		return nil, ZERO, ZERO, err
	}

	amount0, amount1 := ZERO, ZERO
	if !liquidityDelta.IsZero() {
		sqrtLower, err := TickToSqrtPriceX96(tickLower)
		if err != nil {
			return nil, ZERO, ZERO, err
		}
		sqrtUpper, err := TickToSqrtPriceX96(tickUpper)
		if err != nil {
			return nil, ZERO, ZERO, err
		}

		switch {
		case p.Tick < tickLower:
			amount0, err = amount0DeltaSigned(sqrtLower, sqrtUpper, liquidityDelta)
			if err != nil {
				return nil, ZERO, ZERO, err
			}
		case p.Tick < tickUpper:
			amount0, err = amount0DeltaSigned(p.SqrtPriceX96, sqrtUpper, liquidityDelta)
			if err != nil {
				return nil, ZERO, ZERO, err
			}
			amount1, err = amount1DeltaSigned(sqrtLower, p.SqrtPriceX96, liquidityDelta)
			if err != nil {
				return nil, ZERO, ZERO, err
			}
			p.Liquidity, err = AddDelta(p.Liquidity, liquidityDelta)
			if err != nil {
				return nil, ZERO, ZERO, err
			}
		default:
			amount1, err = amount1DeltaSigned(sqrtLower, sqrtUpper, liquidityDelta)
			if err != nil {
				return nil, ZERO, ZERO, err
			}
		}
	}
	return position, amount0, amount1, nil
}

func (p *PoolState) updatePosition(key PositionKey, delta decimal.Decimal) (*Position, error) {
	var flippedLower, flippedUpper bool
	var err error
	if !delta.IsZero() {
		flippedLower, err = p.Ticks.Update(key.TickLower, delta, p.Tick, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128, false, p.MaxLiquidityPerTick)
		if err != nil {
			return nil, err
		}
		flippedUpper, err = p.Ticks.Update(key.TickUpper, delta, p.Tick, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128, true, p.MaxLiquidityPerTick)
		if err != nil {
			return nil, err
		}
	}

	fi0, fi1 := p.Ticks.GetFeeGrowthInside(key.TickLower, key.TickUpper, p.Tick, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)

	position := p.Positions.GetPositionAndInitIfAbsent(key)
	if err := position.Update(delta, fi0, fi1); err != nil {
		return nil, err
	}

	if delta.IsNegative() {
		if flippedLower {
			p.Ticks.Clear(key.TickLower)
		}
		if flippedUpper {
			p.Ticks.Clear(key.TickUpper)
		}
	}
	return position, nil
}

// ApplySwap replays a historical swap event: it attributes the implied fee
// to feeGrowthGlobal, walks and crosses every initialized tick between the
// pool's current tick and tickAfter (so feeGrowthOutside stays correct for
// future position touches), and then commits the event's reported
// post-state as ground truth — the event's numbers always win, even if the
// tick walk implies a different active liquidity.
//
// It returns true if the tick-walk-implied liquidity disagreed with
// liquidityAfter by more than one raw unit (an InvariantViolation the
// replayer records but does not fail on).
func (p *PoolState) ApplySwap(amount0, amount1, sqrtPriceX96After decimal.Decimal, tickAfter int, liquidityAfter decimal.Decimal) (bool, error) {
	if !p.initialized {
		return false, errNotInitialized
	}
	if amount0.IsZero() && amount1.IsZero() {
		return false, nil
	}

	zeroForOne := amount0.IsPositive()
	liquidityBefore := p.Liquidity

	var grossInput decimal.Decimal
	if zeroForOne {
		grossInput = amount0
	} else {
		grossInput = amount1
	}
	feeDelta := grossInput.Mul(decimal.NewFromInt(int64(p.FeeTier))).Div(decimal.NewFromInt(1_000_000)).Truncate(0)

	if liquidityBefore.IsPositive() && feeDelta.IsPositive() {
		feeGrowthDelta := feeDelta.Mul(Q128).Div(liquidityBefore).Truncate(0)
		if zeroForOne {
			p.FeeGrowthGlobal0X128 = p.FeeGrowthGlobal0X128.Add(feeGrowthDelta)
		} else {
			p.FeeGrowthGlobal1X128 = p.FeeGrowthGlobal1X128.Add(feeGrowthDelta)
		}
	} else if feeDelta.IsPositive() {
		logrus.Debugf("pool: dropping fee %s, no active liquidity at tick %d", feeDelta, p.Tick)
	}

	expectedLiquidity := p.walkTicks(zeroForOne, p.Tick, tickAfter, liquidityBefore)

	p.SqrtPriceX96 = sqrtPriceX96After
	p.Tick = tickAfter
	p.Liquidity = liquidityAfter

	discrepancy := expectedLiquidity.Sub(liquidityAfter).Abs().GreaterThan(ONE)
	if discrepancy {
		logrus.Warnf("pool: liquidity discrepancy after swap: walked=%s reported=%s at tick %d", expectedLiquidity, liquidityAfter, tickAfter)
	}
	return discrepancy, nil
}

// walkTicks crosses every initialized tick strictly between fromTick and
// toTick (inclusive of the boundary the crossing direction demands),
// returning the liquidity the walk implies should be active at toTick.
func (p *PoolState) walkTicks(zeroForOne bool, fromTick, toTick int, liquidity decimal.Decimal) decimal.Decimal {
	cur := fromTick
	for {
		if zeroForOne {
			next, ok := p.Ticks.GetNextInitializedTick(cur, true)
			if !ok || next < toTick {
				break
			}
			liquidityNet := p.Ticks.Cross(next, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)
			updated, err := AddDelta(liquidity, liquidityNet.Neg())
			if err != nil {
				logrus.Warnf("pool: tick walk liquidity underflow crossing %d: %v", next, err)
				break
			}
			liquidity = updated
			cur = next - 1
		} else {
			next, ok := p.Ticks.GetNextInitializedTick(cur, false)
			if !ok || next > toTick {
				break
			}
			liquidityNet := p.Ticks.Cross(next, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)
			updated, err := AddDelta(liquidity, liquidityNet)
			if err != nil {
				logrus.Warnf("pool: tick walk liquidity underflow crossing %d: %v", next, err)
				break
			}
			liquidity = updated
			cur = next
		}
		if cur == toTick {
			break
		}
	}
	return liquidity
}
