package pool

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PositionKey identifies a position by (owner, tickLower, tickUpper), the
// same composite key V3 core uses.
type PositionKey struct {
	Owner     common.Address
	TickLower int
	TickUpper int
}

func (k PositionKey) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Owner.Hex(), k.TickLower, k.TickUpper)
}

// Position is the per-owner liquidity record.
type Position struct {
	Key                      PositionKey
	Liquidity                decimal.Decimal
	FeeGrowthInside0LastX128 decimal.Decimal
	FeeGrowthInside1LastX128 decimal.Decimal
	TokensOwed0              decimal.Decimal
	TokensOwed1              decimal.Decimal
}

func newPosition(key PositionKey) *Position {
	return &Position{
		Key:                      key,
		Liquidity:                ZERO,
		FeeGrowthInside0LastX128: ZERO,
		FeeGrowthInside1LastX128: ZERO,
		TokensOwed0:              ZERO,
		TokensOwed1:              ZERO,
	}
}

func (p *Position) clone() *Position {
	c := *p
	return &c
}

// Update settles accrued fees against the position's last-seen fee-growth
// snapshot, then applies a liquidity delta. Attribution is strictly
// incremental: a freshly minted position (Liquidity == 0 before this call)
// takes feeGrowthInsideLast from the current inside value without crediting
// any owed tokens for growth that happened before it existed.
func (p *Position) Update(liquidityDelta decimal.Decimal, feeGrowthInside0, feeGrowthInside1 decimal.Decimal) error {
	var liquidityNext decimal.Decimal
	if liquidityDelta.IsZero() {
		liquidityNext = p.Liquidity
		if liquidityNext.IsZero() {
			return errZeroLiquidity
		}
	} else {
		next, err := LiquidityAddDelta(p.Liquidity, liquidityDelta)
		if err != nil {
			return err
		}
		liquidityNext = next
	}

	tokensOwed0 := feeGrowthInside0.Sub(p.FeeGrowthInside0LastX128).Mul(p.Liquidity).Div(Q128).Truncate(0)
	tokensOwed1 := feeGrowthInside1.Sub(p.FeeGrowthInside1LastX128).Mul(p.Liquidity).Div(Q128).Truncate(0)

	p.Liquidity = liquidityNext
	p.FeeGrowthInside0LastX128 = feeGrowthInside0
	p.FeeGrowthInside1LastX128 = feeGrowthInside1

	if tokensOwed0.IsPositive() || tokensOwed1.IsPositive() {
		p.TokensOwed0 = p.TokensOwed0.Add(tokensOwed0)
		p.TokensOwed1 = p.TokensOwed1.Add(tokensOwed1)
	}
	return nil
}

// Collect withdraws up to (amount0Requested, amount1Requested) from the
// position's owed tokens, capped at what's actually owed.
func (p *Position) Collect(amount0Requested, amount1Requested decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	amount0 := decimal.Min(amount0Requested, p.TokensOwed0)
	amount1 := decimal.Min(amount1Requested, p.TokensOwed1)
	p.TokensOwed0 = p.TokensOwed0.Sub(amount0)
	p.TokensOwed1 = p.TokensOwed1.Sub(amount1)
	return amount0, amount1
}

func (p *Position) IsEmpty() bool {
	return p.Liquidity.IsZero() && p.TokensOwed0.IsZero() && p.TokensOwed1.IsZero()
}

// PositionManager is the position book of component C.
type PositionManager struct {
	positions map[string]*Position
}

func NewPositionManager() *PositionManager {
	return &PositionManager{positions: map[string]*Position{}}
}

func (pm *PositionManager) Clone() *PositionManager {
	newPositions := make(map[string]*Position, len(pm.positions))
	for k, v := range pm.positions {
		newPositions[k] = v.clone()
	}
	return &PositionManager{positions: newPositions}
}

// GetPositionAndInitIfAbsent returns the position for key, creating a fresh
// zero-liquidity one if absent.
func (pm *PositionManager) GetPositionAndInitIfAbsent(key PositionKey) *Position {
	k := key.String()
	p, ok := pm.positions[k]
	if !ok {
		p = newPosition(key)
		pm.positions[k] = p
	}
	return p
}

// GetPositionReadonly returns the position for key without creating it; the
// zero value (Liquidity == 0) is returned if it does not exist.
func (pm *PositionManager) GetPositionReadonly(key PositionKey) *Position {
	if p, ok := pm.positions[key.String()]; ok {
		return p
	}
	return newPosition(key)
}

// AllForOwner returns every position currently tracked for owner, ordered
// by (tickLower, tickUpper), used by the backtest driver to enumerate a
// strategy's open ranges.
func (pm *PositionManager) AllForOwner(owner common.Address) []*Position {
	var out []*Position
	for _, p := range pm.positions {
		if p.Key.Owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.TickLower != out[j].Key.TickLower {
			return out[i].Key.TickLower < out[j].Key.TickLower
		}
		return out[i].Key.TickUpper < out[j].Key.TickUpper
	})
	return out
}

func (pm *PositionManager) remove(key PositionKey) {
	delete(pm.positions, key.String())
}
