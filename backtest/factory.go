package backtest

import (
	"fmt"

	"github.com/quantforge/v3-backtester/config"
	"github.com/quantforge/v3-backtester/strategy"
)

// NewStrategyFromConfig builds the concrete strategy.Strategy named by
// cfg.StrategyName, wiring each strategy's own parameter block from the
// matching fields of the configuration. It is the only place config's
// `strategy` enum turns into a live Strategy — everything upstream of it
// (the replayer, pool, valuation) is strategy-agnostic.
func NewStrategyFromConfig(cfg config.Config) (strategy.Strategy, error) {
	switch cfg.StrategyName {
	case config.StrategyHold, "":
		// strategy=hold is the no-LP baseline: with zero swaps, final value
		// trivially equals initial capital only if no position (and thus no
		// IL) is ever opened.
		return strategy.NewHodl50(), nil

	case config.StrategyPassiveRange:
		if cfg.TickLower != nil && cfg.TickUpper != nil {
			return strategy.NewPassiveHoldFixedRange(*cfg.TickLower, *cfg.TickUpper), nil
		}
		return strategy.NewPassiveHold(cfg.PriceRangePct, cfg.TickSpacing), nil

	case config.StrategyATR:
		return strategy.NewATRDynamicRange(cfg.ATRPeriod, cfg.ATRMultiplier, cfg.DeviationThreshold, cfg.RebalanceIntervalS, cfg.TickSpacing), nil

	case config.StrategyAlphaVault:
		return strategy.NewAlphaVault(cfg.BaseThreshold, cfg.LimitThreshold, cfg.AlphaRebalanceIntervalS, cfg.TickSpacing), nil

	case config.StrategyFixedWidth:
		return strategy.NewFixedWidth(cfg.PositionWidthTicks, cfg.RebalanceThresholdBps, cfg.TickSpacing), nil

	case config.StrategyBollinger:
		return strategy.NewBollinger(cfg.SMAPeriod, cfg.StdMultiplier, cfg.MinWidthTicks, cfg.TickSpacing), nil

	default:
		return nil, fmt.Errorf("backtest: unknown strategy %q", cfg.StrategyName)
	}
}

// NewDriverFromConfig constructs the strategy named by cfg and wires it
// into a Driver.
func NewDriverFromConfig(cfg config.Config) (*Driver, error) {
	strat, err := NewStrategyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewDriver(cfg, strat), nil
}
