package pool

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lp1 = common.HexToAddress("0x0000000000000000000000000000000000000001")

func newTestPool(t *testing.T, tick int) *PoolState {
	t.Helper()
	p := NewPoolState(FeeMedium, 60)
	sqrtPrice, err := TickToSqrtPriceX96(tick)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(sqrtPrice, FeeMedium, 60))
	return p
}

// Scenario 1: static pool, no swaps. Mint then burn across ten no-op swaps
// must accrue no fees: Burn credits the freed principal to tokensOwed, so
// tokensOwed must equal exactly what the burn returned, with zero fees on top.
func TestStaticPoolNoSwapsNoFees(t *testing.T) {
	p := newTestPool(t, 70000)
	_, _, err := p.Mint(lp1, 69000, 72000, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		discrepancy, err := p.ApplySwap(decimal.Zero, decimal.Zero, p.SqrtPriceX96, p.Tick, p.Liquidity)
		require.NoError(t, err)
		assert.False(t, discrepancy)
	}

	burned0, burned1, err := p.Burn(lp1, 69000, 72000, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	pos := p.Positions.GetPositionReadonly(PositionKey{Owner: lp1, TickLower: 69000, TickUpper: 72000})
	assert.True(t, pos.TokensOwed0.Sub(burned0).IsZero())
	assert.True(t, pos.TokensOwed1.Sub(burned1).IsZero())
}

// Scenario 2: one LP capturing the entirety of a single swap's fee.
func TestOneLPFullFeeCapture(t *testing.T) {
	p := newTestPool(t, 70500)
	_, _, err := p.Mint(lp1, 70000, 71000, decimal.NewFromInt(1000))
	require.NoError(t, err)

	amountIn := decimal.NewFromInt(1_000_000)
	_, err = p.ApplySwap(amountIn, decimal.NewFromInt(-1), p.SqrtPriceX96, p.Tick, p.Liquidity)
	require.NoError(t, err)

	expectedFee := amountIn.Mul(decimal.NewFromInt(3000)).Div(decimal.NewFromInt(1_000_000)).Truncate(0)
	expectedGrowth := expectedFee.Mul(Q128).Div(decimal.NewFromInt(1000)).Truncate(0)
	assert.True(t, p.FeeGrowthGlobal0X128.Equal(expectedGrowth))

	// Touch the position to settle fees (mint of zero-effective delta via a
	// read path: use updatePosition indirectly through a tiny mint/burn pair
	// is unnecessary — GetFeeGrowthInside alone reproduces tokensOwed here).
	fi0, _ := p.Ticks.GetFeeGrowthInside(70000, 71000, p.Tick, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)
	tokensOwed0 := fi0.Mul(decimal.NewFromInt(1000)).Div(Q128).Truncate(0)
	assert.True(t, tokensOwed0.Sub(expectedFee).Abs().LessThanOrEqual(ONE))
}

// Scenario 3: range exit — once the tick leaves [tickLower, tickUpper),
// further swaps must not increment the position's owed tokens.
func TestRangeExitStopsAccrual(t *testing.T) {
	p := newTestPool(t, 70000)
	_, _, err := p.Mint(lp1, 70000, 70120, decimal.NewFromInt(1000))
	require.NoError(t, err)

	newTick := 70200
	newSqrt, err := TickToSqrtPriceX96(newTick)
	require.NoError(t, err)
	_, err = p.ApplySwap(decimal.NewFromInt(1), decimal.NewFromInt(-1), newSqrt, newTick, p.Liquidity)
	require.NoError(t, err)

	fiBefore0, fiBefore1 := p.Ticks.GetFeeGrowthInside(70000, 70120, p.Tick, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)

	_, err = p.ApplySwap(decimal.NewFromInt(1_000_000), decimal.NewFromInt(-1), newSqrt, newTick, p.Liquidity)
	require.NoError(t, err)

	fiAfter0, fiAfter1 := p.Ticks.GetFeeGrowthInside(70000, 70120, p.Tick, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)
	assert.True(t, fiBefore0.Equal(fiAfter0))
	assert.True(t, fiBefore1.Equal(fiAfter1))
}

func TestMintRejectsZeroLiquidity(t *testing.T) {
	p := newTestPool(t, 70000)
	_, _, err := p.Mint(lp1, 69000, 71000, decimal.Zero)
	assert.Error(t, err)
}

func TestBurnExceedingPositionLiquidityFails(t *testing.T) {
	p := newTestPool(t, 70000)
	_, _, err := p.Mint(lp1, 69000, 71000, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, _, err = p.Burn(lp1, 69000, 71000, decimal.NewFromInt(200))
	assert.Error(t, err)
}

func TestZeroAmountSwapIsNoOp(t *testing.T) {
	p := newTestPool(t, 70000)
	_, _, err := p.Mint(lp1, 69000, 71000, decimal.NewFromInt(1000))
	require.NoError(t, err)
	before := p.FeeGrowthGlobal0X128
	discrepancy, err := p.ApplySwap(decimal.Zero, decimal.Zero, p.SqrtPriceX96, p.Tick, p.Liquidity)
	require.NoError(t, err)
	assert.False(t, discrepancy)
	assert.True(t, before.Equal(p.FeeGrowthGlobal0X128))
}

func TestActiveLiquidityInvariant(t *testing.T) {
	p := newTestPool(t, 70000)
	_, _, err := p.Mint(lp1, 69000, 71000, decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, _, err = p.Mint(lp1, 69500, 70500, decimal.NewFromInt(500))
	require.NoError(t, err)

	assert.True(t, p.Liquidity.Equal(p.Ticks.ActiveLiquidityAt(p.Tick)))
}

func TestFeeDroppedWhenNoActiveLiquidity(t *testing.T) {
	p := newTestPool(t, 70000)
	before := p.FeeGrowthGlobal0X128
	_, err := p.ApplySwap(decimal.NewFromInt(1_000_000), decimal.NewFromInt(-1), p.SqrtPriceX96, p.Tick, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, before.Equal(p.FeeGrowthGlobal0X128))
}

func TestInitializeIdempotent(t *testing.T) {
	p := NewPoolState(FeeMedium, 60)
	sqrtPrice, _ := TickToSqrtPriceX96(70000)
	require.NoError(t, p.Initialize(sqrtPrice, FeeMedium, 60))
	require.NoError(t, p.Initialize(sqrtPrice, FeeMedium, 60))

	other, _ := TickToSqrtPriceX96(70001)
	assert.Error(t, p.Initialize(other, FeeMedium, 60))
}
