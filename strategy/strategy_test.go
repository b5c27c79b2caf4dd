package strategy

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantforge/v3-backtester/indicator"
	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoolAtTick(t *testing.T, tick int) *pool.PoolState {
	t.Helper()
	p := pool.NewPoolState(pool.FeeMedium, 60)
	sqrtP, err := pool.TickToSqrtPriceX96(tick)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(sqrtP, pool.FeeMedium, 60))
	return p
}

func baseSnapshot(t *testing.T, tick int) Snapshot {
	return Snapshot{
		Timestamp:  0,
		Pool:       newPoolAtTick(t, tick),
		Owner:      common.HexToAddress("0x01"),
		Idle0:      decimal.NewFromInt(1000),
		Idle1:      decimal.NewFromInt(1000),
		Indicators: indicator.NewWindow(14),
	}
}

func TestPassiveHoldOpensOnceThenHolds(t *testing.T) {
	s := NewPassiveHold(decimal.NewFromFloat(0.10), 60)
	snap := baseSnapshot(t, 0)

	action, err := s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionOpenPosition, action.Kind)
	assert.True(t, action.TickLower < 0)
	assert.True(t, action.TickUpper > 0)

	action, err = s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, action.Kind)
}

func TestHodl50AlwaysHolds(t *testing.T) {
	s := NewHodl50()
	snap := baseSnapshot(t, 0)
	action, err := s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, action.Kind)
}

func TestATRDynamicHoldsUntilWarmedUp(t *testing.T) {
	s := NewATRDynamicRange(3, decimal.NewFromInt(2), decimal.NewFromFloat(0.03), 180, 60)
	snap := baseSnapshot(t, 0)
	action, err := s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, action.Kind, "ATR not ready, must Hold not open with a garbage range")
}

func TestATRDynamicOpensOnceReady(t *testing.T) {
	s := NewATRDynamicRange(2, decimal.NewFromInt(2), decimal.NewFromFloat(0.03), 180, 60)
	snap := baseSnapshot(t, 0)
	snap.Indicators = indicator.NewWindow(2)

	snap.Indicators.PushBar(indicator.Bar{High: decimal.NewFromInt(10), Low: decimal.NewFromInt(8), Close: decimal.NewFromInt(9)})
	snap.Indicators.PushBar(indicator.Bar{High: decimal.NewFromInt(11), Low: decimal.NewFromInt(9), Close: decimal.NewFromInt(10)})
	snap.Indicators.PushBar(indicator.Bar{High: decimal.NewFromInt(12), Low: decimal.NewFromInt(10), Close: decimal.NewFromInt(11)})

	action, err := s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionOpenPosition, action.Kind)
}

func TestFixedWidthRebalancesWhenDeviationExceedsThreshold(t *testing.T) {
	s := NewFixedWidth(1200, decimal.NewFromInt(500), 60) // 5% of width
	snap := baseSnapshot(t, 0)
	action, err := s.OnEvent(snap)
	require.NoError(t, err)
	require.Equal(t, ActionOpenPosition, action.Kind)

	moved := baseSnapshot(t, 600) // 600 ticks from center, far past the 60-tick threshold
	action, err = s.OnEvent(moved)
	require.NoError(t, err)
	assert.Equal(t, ActionRebalance, action.Kind)
}

func TestBollingerNotReadyUntilWindowFull(t *testing.T) {
	s := NewBollinger(5, decimal.NewFromInt(2), 10, 60)
	snap := baseSnapshot(t, 0)
	action, err := s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, action.Kind)
}

func TestAlphaVaultSequencesBaseThenLimitThenSteady(t *testing.T) {
	s := NewAlphaVault(1200, 600, 48*3600, 60)
	snap := baseSnapshot(t, 0)

	a1, err := s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionOpenPosition, a1.Kind)

	a2, err := s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionOpenPosition, a2.Kind)

	a3, err := s.OnEvent(snap)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, a3.Kind, "steady phase must not rebalance before the interval elapses")
}
