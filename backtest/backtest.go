// Package backtest wires the replayer, the position/fee-accounting pool, the
// indicator window, and a Strategy together, driving one deterministic
// single-threaded run over an event stream and producing a time series plus
// a final summary.
package backtest

import (
	"fmt"

	core "github.com/daoleno/uniswap-sdk-core/entities"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/quantforge/v3-backtester/config"
	"github.com/quantforge/v3-backtester/event"
	"github.com/quantforge/v3-backtester/indicator"
	"github.com/quantforge/v3-backtester/pool"
	"github.com/quantforge/v3-backtester/replay"
	"github.com/quantforge/v3-backtester/store"
	"github.com/quantforge/v3-backtester/strategy"
	"github.com/quantforge/v3-backtester/valuation"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// gas units per action kind, a reporting-only proxy for "gas spent" — not
// consensus data, just a relative cost model for comparing strategies'
// trading frequency.
const (
	gasMint  = 150_000
	gasBurn  = 120_000
	gasCollect = 80_000
)

// TimeSeriesPoint is one row of the per-event record a run produces.
type TimeSeriesPoint struct {
	Timestamp       int64
	SpotPrice       decimal.Decimal
	DisplaySpotPrice decimal.Decimal
	PortfolioValue  decimal.Decimal
	ActiveTickLower int
	ActiveTickUpper int
	FeesAccumQuote  decimal.Decimal
	Action          string
}

// Summary is the final report of a run.
type Summary struct {
	TotalReturn             decimal.Decimal
	MaxDrawdown             decimal.Decimal
	RebalanceCount          int
	GasSpent                decimal.Decimal
	ImpermanentLoss         decimal.Decimal
	StrategyPreconditionFailures int
	Discrepancies           []replay.Discrepancy
}

// Result is everything a run produces.
type Result struct {
	TimeSeries []TimeSeriesPoint
	Summary    Summary
}

// Driver owns one strategy's isolated copy of pool state for a single run.
// Comparing strategies means giving each its own Driver over a shared,
// read-only event slice.
type Driver struct {
	cfg      config.Config
	strategy strategy.Strategy
	owner    common.Address

	pool     *pool.PoolState
	replayer *replay.Replayer
	bars     *indicator.BarBuilder
	window   *indicator.Window
	token0, token1 *core.Token

	idle0, idle1 decimal.Decimal
	initialAmount0, initialAmount1 decimal.Decimal
	initialCapitalConverted bool

	gasSpent       decimal.Decimal
	rebalanceCount int
	strategyPreconditionFailures int
}

// NewDriver constructs a driver for one strategy run. The owner identity is
// a synthetic per-run UUID rather than an on-chain NFT tokenID, since a
// backtest strategy has no real position NFT to key off of.
func NewDriver(cfg config.Config, strat strategy.Strategy) *Driver {
	ownerBytes := uuid.New()
	var addr common.Address
	copy(addr[:], ownerBytes[:])

	return &Driver{
		cfg:      cfg,
		strategy: strat,
		owner:    addr,
		pool:     pool.NewPoolState(cfg.FeeTier, cfg.TickSpacing),
		bars:     indicator.NewBarBuilder(cfg.BarIntervalSeconds),
		window:   indicator.NewWindow(cfg.ATRPeriod),
		token0:   valuation.NewDisplayToken(cfg.Decimals0),
		token1:   valuation.NewDisplayToken(cfg.Decimals1),
		idle0:    decimal.Zero,
		idle1:    decimal.Zero,
		gasSpent: decimal.Zero,
	}
}

// Run drives the full event stream to completion or to the first fatal
// replay error. When cfg.SQLitePath is set, the resulting time series,
// discrepancies, and summary are also persisted before Run returns.
func (d *Driver) Run(records []event.Record) (*Result, error) {
	d.replayer = replay.NewReplayer(d.pool)
	sorted := replay.SortRecords(records)

	var timeSeries []TimeSeriesPoint
	maxValue := decimal.Zero
	maxDrawdown := decimal.Zero

	for idx, rec := range sorted {
		if d.cfg.StartTimestamp != 0 && rec.BlockTimestamp < d.cfg.StartTimestamp {
			continue
		}
		if d.cfg.EndTimestamp != 0 && rec.BlockTimestamp > d.cfg.EndTimestamp {
			break
		}
		if d.cfg.StartBlock != 0 && rec.BlockNumber < d.cfg.StartBlock {
			continue
		}
		if d.cfg.EndBlock != 0 && rec.BlockNumber > d.cfg.EndBlock {
			break
		}

		if err := d.replayer.Apply(idx, rec); err != nil {
			return nil, fmt.Errorf("backtest: halted at event %d: %w", idx, err)
		}

		if !d.initialCapitalConverted && d.pool.Initialized() {
			d.convertInitialCapital()
		}
		if !d.pool.Initialized() {
			continue
		}

		actionLabel := "hold"
		if rec.Kind == event.KindSwap {
			price := valuation.RawPrice(d.pool.SqrtPriceX96)
			if bar, closed := d.bars.Add(rec.BlockTimestamp, price); closed {
				d.window.PushBar(bar)
			}

			action, err := d.strategy.OnEvent(d.snapshot(rec.BlockTimestamp))
			if err != nil {
				return nil, fmt.Errorf("backtest: strategy error at event %d: %w", idx, err)
			}
			actionLabel = d.applyAction(action)
		}

		point := d.recordPoint(rec.BlockTimestamp, actionLabel)
		timeSeries = append(timeSeries, point)

		if point.PortfolioValue.GreaterThan(maxValue) {
			maxValue = point.PortfolioValue
		}
		if maxValue.IsPositive() {
			drawdown := maxValue.Sub(point.PortfolioValue).Div(maxValue)
			if drawdown.GreaterThan(maxDrawdown) {
				maxDrawdown = drawdown
			}
		}
	}

	if bar, ok := d.bars.Flush(); ok {
		d.window.PushBar(bar)
	}

	summary := d.summarize(timeSeries, maxDrawdown)
	d.persist(timeSeries, summary)
	return &Result{TimeSeries: timeSeries, Summary: summary}, nil
}

// persist writes a completed run's output to cfg.SQLitePath, if set. A
// failure to persist is logged, not fatal — the in-memory Result returned by
// Run is always authoritative regardless of whether the sink is reachable.
func (d *Driver) persist(timeSeries []TimeSeriesPoint, summary Summary) {
	if d.cfg.SQLitePath == "" {
		return
	}

	st, err := store.Open(d.cfg.SQLitePath)
	if err != nil {
		logrus.Warnf("backtest: could not open store at %s: %v", d.cfg.SQLitePath, err)
		return
	}
	defer st.Close()

	runID := d.owner.Hex()

	rows := make([]store.TimeSeriesRow, len(timeSeries))
	for i, p := range timeSeries {
		rows[i] = store.TimeSeriesRow{
			RunID:            runID,
			EventIndex:       i,
			Timestamp:        p.Timestamp,
			SpotPrice:        p.SpotPrice.String(),
			DisplaySpotPrice: p.DisplaySpotPrice.String(),
			PortfolioValue:   p.PortfolioValue.String(),
			ActiveTickLower:  p.ActiveTickLower,
			ActiveTickUpper:  p.ActiveTickUpper,
			FeesAccumQuote:   p.FeesAccumQuote.String(),
			Action:           p.Action,
		}
	}
	if err := st.FlushTimeSeries(rows); err != nil {
		logrus.Warnf("backtest: flush time series failed: %v", err)
	}

	discRows := make([]store.DiscrepancyRow, len(summary.Discrepancies))
	for i, dd := range summary.Discrepancies {
		discRows[i] = store.DiscrepancyRow{
			RunID:      runID,
			EventIndex: dd.EventIndex,
			Timestamp:  dd.Timestamp,
			Kind:       dd.Kind.String(),
			Message:    dd.Message,
		}
	}
	if err := st.FlushDiscrepancies(discRows); err != nil {
		logrus.Warnf("backtest: flush discrepancies failed: %v", err)
	}

	metricsRow := store.MetricsRow{
		RunID:                   runID,
		TotalReturn:             summary.TotalReturn.String(),
		MaxDrawdown:             summary.MaxDrawdown.String(),
		RebalanceCount:          summary.RebalanceCount,
		GasSpent:                summary.GasSpent.String(),
		ImpermanentLoss:         summary.ImpermanentLoss.String(),
		DiscrepancyCount:        len(summary.Discrepancies),
		StrategyPrecondFailures: summary.StrategyPreconditionFailures,
	}
	if err := st.FlushMetrics(metricsRow); err != nil {
		logrus.Warnf("backtest: flush metrics failed: %v", err)
	}
}

// convertInitialCapital splits initial_capital_quote into (amount0, amount1)
// at the bootstrap price, 50/50 by value.
func (d *Driver) convertInitialCapital() {
	price := valuation.RawPrice(d.pool.SqrtPriceX96)
	halfQuote := d.cfg.InitialCapitalQuote.Div(decimal.NewFromInt(2))
	if price.IsPositive() {
		d.idle0 = halfQuote.Div(price)
	}
	d.idle1 = halfQuote
	d.initialAmount0, d.initialAmount1 = d.idle0, d.idle1
	d.initialCapitalConverted = true
}

func (d *Driver) snapshot(ts int64) strategy.Snapshot {
	return strategy.Snapshot{
		Timestamp:   ts,
		Pool:        d.pool,
		Owner:       d.owner,
		MyPositions: d.pool.Positions.AllForOwner(d.owner),
		Idle0:       d.idle0,
		Idle1:       d.idle1,
		Indicators:  d.window,
	}
}

func (d *Driver) applyAction(action strategy.Action) string {
	switch action.Kind {
	case strategy.ActionHold:
		return "hold"
	case strategy.ActionOpenPosition:
		if d.open(action.TickLower, action.TickUpper, action.Amount0Max, action.Amount1Max) {
			return "open"
		}
		return "hold"
	case strategy.ActionClosePosition:
		d.close(action.CloseTickLower, action.CloseTickUpper)
		return "close"
	case strategy.ActionRebalance:
		d.close(action.CloseTickLower, action.CloseTickUpper)
		d.swapIdleToParity()
		d.chargeRebalanceCost(action.TickLower, action.TickUpper)
		if d.open(action.TickLower, action.TickUpper, d.idle0, d.idle1) {
			d.rebalanceCount++
			return "rebalance"
		}
		return "rebalance_skipped"
	default:
		return "hold"
	}
}

// open mints a position using at most (amount0Max, amount1Max), skipping
// (and counting as a StrategyPrecondition failure) rather than creating a
// zero-liquidity position.
func (d *Driver) open(tickLower, tickUpper int, amount0Max, amount1Max decimal.Decimal) bool {
	liquidity, err := pool.GetLiquidityForAmounts(d.pool.SqrtPriceX96, mustSqrt(tickLower), mustSqrt(tickUpper), amount0Max, amount1Max)
	if err != nil {
		logrus.Warnf("backtest: could not size position [%d,%d]: %v", tickLower, tickUpper, err)
		d.strategyPreconditionFailures++
		return false
	}
	if !liquidity.IsPositive() {
		logrus.Warnf("backtest: skipping zero-liquidity open [%d,%d]", tickLower, tickUpper)
		d.strategyPreconditionFailures++
		return false
	}

	amount0, amount1, err := d.pool.Mint(d.owner, tickLower, tickUpper, liquidity)
	if err != nil {
		logrus.Warnf("backtest: mint [%d,%d] failed: %v", tickLower, tickUpper, err)
		d.strategyPreconditionFailures++
		return false
	}
	d.idle0 = d.idle0.Sub(amount0)
	d.idle1 = d.idle1.Sub(amount1)
	d.gasSpent = d.gasSpent.Add(decimal.NewFromInt(gasMint))
	return true
}

// close burns all liquidity in [tickLower, tickUpper] and collects proceeds
// (including settled fees) back to idle reserves.
func (d *Driver) close(tickLower, tickUpper int) {
	key := pool.PositionKey{Owner: d.owner, TickLower: tickLower, TickUpper: tickUpper}
	position := d.pool.Positions.GetPositionReadonly(key)
	if position.Liquidity.IsPositive() {
		if _, _, err := d.pool.Burn(d.owner, tickLower, tickUpper, position.Liquidity); err != nil {
			logrus.Warnf("backtest: burn [%d,%d] failed: %v", tickLower, tickUpper, err)
			return
		}
		d.gasSpent = d.gasSpent.Add(decimal.NewFromInt(gasBurn))
	}

	amount0, amount1, err := d.pool.Collect(d.owner, tickLower, tickUpper, pool.MaxCollectable, pool.MaxCollectable)
	if err != nil {
		logrus.Warnf("backtest: collect [%d,%d] failed: %v", tickLower, tickUpper, err)
		return
	}
	d.idle0 = d.idle0.Add(amount0)
	d.idle1 = d.idle1.Add(amount1)
	d.gasSpent = d.gasSpent.Add(decimal.NewFromInt(gasCollect))
}

// swapIdleToParity converts the idle reserves left over from a close into a
// 50/50 value split at the pool's current price, the way a rebalancer would
// swap its proceeds before re-minting a new centered range. Without this
// step a close that leaves (say) all-token0 idle after the price ran past
// the old range would size the new, differently-shaped range against a
// badly lopsided pair and collapse to near-zero liquidity. This is a
// notional conversion only — no swap event is recorded against the pool —
// and its cost is folded into chargeRebalanceCost's flat bps fee rather than
// modeled with its own slippage curve.
func (d *Driver) swapIdleToParity() {
	price := valuation.RawPrice(d.pool.SqrtPriceX96)
	if !price.IsPositive() {
		return
	}
	total := valuation.QuoteValue(d.idle0, d.idle1, d.pool.SqrtPriceX96)
	half := total.Div(decimal.NewFromInt(2))
	d.idle0 = half.Div(price)
	d.idle1 = half
}

// chargeRebalanceCost deducts rebalance_cost_bps of the repositioned
// notional from idle token1 — the only friction a rebalance pays.
func (d *Driver) chargeRebalanceCost(tickLower, tickUpper int) {
	notional := valuation.QuoteValue(d.idle0, d.idle1, d.pool.SqrtPriceX96)
	cost := notional.Mul(d.cfg.RebalanceCostBps).Div(decimal.NewFromInt(10_000))
	if cost.IsPositive() {
		d.idle1 = d.idle1.Sub(cost)
	}
}

func (d *Driver) recordPoint(ts int64, action string) TimeSeriesPoint {
	positions := d.pool.Positions.AllForOwner(d.owner)
	portfolioValue, err := valuation.PortfolioValue(positions, d.idle0, d.idle1, d.pool.SqrtPriceX96)
	if err != nil {
		logrus.Warnf("backtest: portfolio valuation failed at ts=%d: %v", ts, err)
	}

	var feesAccum decimal.Decimal
	for _, p := range positions {
		feesAccum = feesAccum.Add(p.TokensOwed1).Add(p.TokensOwed0.Mul(valuation.RawPrice(d.pool.SqrtPriceX96)))
	}

	tl, tu := 0, 0
	if len(positions) > 0 {
		tl, tu = positions[0].Key.TickLower, positions[0].Key.TickUpper
	}

	rawPrice := valuation.RawPrice(d.pool.SqrtPriceX96)
	return TimeSeriesPoint{
		Timestamp:       ts,
		SpotPrice:       rawPrice,
		DisplaySpotPrice: valuation.DisplayPrice(rawPrice, d.token0, d.token1),
		PortfolioValue:  portfolioValue,
		ActiveTickLower: tl,
		ActiveTickUpper: tu,
		FeesAccumQuote:  feesAccum,
		Action:          action,
	}
}

func (d *Driver) summarize(timeSeries []TimeSeriesPoint, maxDrawdown decimal.Decimal) Summary {
	var totalReturn, il decimal.Decimal
	if len(timeSeries) > 0 && d.cfg.InitialCapitalQuote.IsPositive() {
		final := timeSeries[len(timeSeries)-1]
		totalReturn = final.PortfolioValue.Sub(d.cfg.InitialCapitalQuote).Div(d.cfg.InitialCapitalQuote)

		lpValueExcludingFees := final.PortfolioValue.Sub(final.FeesAccumQuote)
		il = valuation.ImpermanentLoss(lpValueExcludingFees, d.initialAmount0, d.initialAmount1, d.pool.SqrtPriceX96)
	}

	return Summary{
		TotalReturn:                   totalReturn,
		MaxDrawdown:                   maxDrawdown,
		RebalanceCount:                d.rebalanceCount,
		GasSpent:                      d.gasSpent,
		ImpermanentLoss:               il,
		StrategyPreconditionFailures:  d.strategyPreconditionFailures,
		Discrepancies:                 d.replayer.Discrepancies,
	}
}

func mustSqrt(tick int) decimal.Decimal {
	s, err := pool.TickToSqrtPriceX96(tick)
	if err != nil {
		// MIN_TICK/MAX_TICK bound checking in pool.TickToSqrtPriceX96 makes
		// this unreachable for any tick a strategy derives via snapToSpacing
		// against the same bounds; a panic here would indicate a strategy
		// bug, not a data problem.
		panic(fmt.Sprintf("backtest: invalid tick %d: %v", tick, err))
	}
	return s
}
