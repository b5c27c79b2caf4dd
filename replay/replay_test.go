package replay

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantforge/v3-backtester/event"
	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lp1 = common.HexToAddress("0x0000000000000000000000000000000000000001")

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sqrtAtTick(t *testing.T, tick int) decimal.Decimal {
	t.Helper()
	s, err := pool.TickToSqrtPriceX96(tick)
	require.NoError(t, err)
	return s
}

func TestSortRecordsOrdersByTimestampThenBlockThenLogIndex(t *testing.T) {
	in := []event.Record{
		{Kind: event.KindSwap, BlockTimestamp: 100, BlockNumber: 5, LogIndex: 1},
		{Kind: event.KindSwap, BlockTimestamp: 50, BlockNumber: 1, LogIndex: 0},
		{Kind: event.KindSwap, BlockTimestamp: 100, BlockNumber: 5, LogIndex: 0},
	}
	out := SortRecords(in)
	assert.Equal(t, int64(50), out[0].BlockTimestamp)
	assert.Equal(t, uint(0), out[1].LogIndex)
	assert.Equal(t, uint(1), out[2].LogIndex)
}

func newUninitializedPool() *pool.PoolState {
	return pool.NewPoolState(pool.FeeMedium, 60)
}

func TestApplyBootstrapsFromFirstSwap(t *testing.T) {
	p := newUninitializedPool()
	r := NewReplayer(p)

	sqrtP := sqrtAtTick(t, 0)
	swap := event.Record{
		Kind: event.KindSwap, BlockTimestamp: 1,
		Swap: &event.SwapRecord{Amount0: dec("0"), Amount1: dec("0"), SqrtPriceX96: sqrtP, Liquidity: pool.ZERO, Tick: 0},
	}
	err := r.Apply(0, swap)
	require.NoError(t, err)
	assert.True(t, p.Initialized())
	assert.Equal(t, 1, r.Applied)
}

func TestApplySkipsNonSwapBeforeInitAsDiscrepancy(t *testing.T) {
	p := newUninitializedPool()
	r := NewReplayer(p)

	mint := event.Record{
		Kind: event.KindMint, BlockTimestamp: 1,
		Mint: &event.MintRecord{Owner: lp1, TickLower: -60, TickUpper: 60, Liquidity: dec("1000"), Amount0: dec("1"), Amount1: dec("1")},
	}
	err := r.Apply(0, mint)
	require.NoError(t, err)
	assert.False(t, p.Initialized())
	assert.Equal(t, 1, r.Skipped)
	require.Len(t, r.Discrepancies, 1)
	assert.Equal(t, KindInputShape, r.Discrepancies[0].Kind)
}

func TestApplyMintReconcilesAmountMismatchAsDiscrepancyNotHalt(t *testing.T) {
	p := newUninitializedPool()
	r := NewReplayer(p)
	require.NoError(t, p.Initialize(sqrtAtTick(t, 0), pool.FeeMedium, 60))

	mint := event.Record{
		Kind: event.KindMint, BlockTimestamp: 1,
		Mint: &event.MintRecord{
			Owner: lp1, TickLower: -60, TickUpper: 60, Liquidity: dec("1000000"),
			Amount0: dec("999999999999"), Amount1: dec("999999999999"), // deliberately wrong reported amounts
		},
	}
	err := r.Apply(0, mint)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Applied)
	assert.NotEmpty(t, r.Discrepancies)
	for _, d := range r.Discrepancies {
		assert.Equal(t, KindInvariantViolation, d.Kind)
	}
}

func TestApplyBurnExceedingLiquiditySkipsAndContinues(t *testing.T) {
	p := newUninitializedPool()
	r := NewReplayer(p)
	require.NoError(t, p.Initialize(sqrtAtTick(t, 0), pool.FeeMedium, 60))

	burn := event.Record{
		Kind: event.KindBurn, BlockTimestamp: 1,
		Burn: &event.BurnRecord{Owner: lp1, TickLower: -60, TickUpper: 60, Liquidity: dec("1000")},
	}
	err := r.Apply(0, burn)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 0, r.Applied)
}

func TestApplySwapFlagsOppositeSignDiscrepancyButStillApplies(t *testing.T) {
	p := newUninitializedPool()
	r := NewReplayer(p)
	require.NoError(t, p.Initialize(sqrtAtTick(t, 0), pool.FeeMedium, 60))

	sqrtNext := sqrtAtTick(t, 1)
	swap := event.Record{
		Kind: event.KindSwap, BlockTimestamp: 2,
		Swap: &event.SwapRecord{Amount0: dec("100"), Amount1: dec("50"), SqrtPriceX96: sqrtNext, Liquidity: pool.ZERO, Tick: 1},
	}
	err := r.Apply(0, swap)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Applied)
	require.NotEmpty(t, r.Discrepancies)
	assert.Equal(t, KindInvariantViolation, r.Discrepancies[0].Kind)
}

func TestApplyMintOverflowIsFatal(t *testing.T) {
	p := newUninitializedPool()
	r := NewReplayer(p)
	require.NoError(t, p.Initialize(sqrtAtTick(t, 0), pool.FeeMedium, 60))

	huge := p.MaxLiquidityPerTick.Add(pool.ONE)
	mint := event.Record{
		Kind: event.KindMint, BlockTimestamp: 1,
		Mint: &event.MintRecord{Owner: lp1, TickLower: -60, TickUpper: 60, Liquidity: huge, Amount0: pool.ZERO, Amount1: pool.ZERO},
	}
	err := r.Apply(0, mint)
	require.Error(t, err)
	fe, ok := err.(*FatalError)
	require.True(t, ok)
	assert.Equal(t, KindNumericalOverflow, fe.Kind)
}
