// Package config loads and validates the single immutable per-run
// configuration record, following the YAML loading pattern of
// ChoSanghyuk-blackholedex/configs.
package config

import (
	"fmt"
	"os"

	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Strategy enumerates the config's `strategy` option.
type Strategy string

const (
	StrategyHold         Strategy = "hold"
	StrategyPassiveRange Strategy = "passive_range"
	StrategyATR          Strategy = "atr"
	StrategyAlphaVault   Strategy = "alpha_vault"
	StrategyFixedWidth   Strategy = "fixed_width"
	StrategyBollinger    Strategy = "bollinger"
)

// Config is the full set of run options.
type Config struct {
	DataPath string `yaml:"data_path"`

	InitialCapitalQuote decimal.Decimal `yaml:"initial_capital_quote"`

	StartTimestamp int64 `yaml:"start_timestamp"`
	EndTimestamp   int64 `yaml:"end_timestamp"`
	StartBlock     uint64 `yaml:"start_block"`
	EndBlock       uint64 `yaml:"end_block"`

	PriceRangePct decimal.Decimal `yaml:"price_range_pct"`
	TickLower     *int            `yaml:"tick_lower"`
	TickUpper     *int            `yaml:"tick_upper"`

	StrategyName Strategy `yaml:"strategy"`

	ATRPeriod             int             `yaml:"atr_period"`
	ATRMultiplier         decimal.Decimal `yaml:"atr_multiplier"`
	RebalanceIntervalS    int64           `yaml:"rebalance_interval_s"`
	DeviationThreshold    decimal.Decimal `yaml:"deviation_threshold"`

	BaseThreshold           int   `yaml:"base_threshold"`
	LimitThreshold          int   `yaml:"limit_threshold"`
	AlphaRebalanceIntervalS int64 `yaml:"alpha_rebalance_interval_s"`

	PositionWidthTicks    int             `yaml:"position_width_ticks"`
	RebalanceThresholdBps decimal.Decimal `yaml:"rebalance_threshold_bps"`

	SMAPeriod     int             `yaml:"sma_period"`
	StdMultiplier decimal.Decimal `yaml:"std_multiplier"`
	MinWidthTicks int             `yaml:"min_width_ticks"`

	RebalanceCostBps decimal.Decimal `yaml:"rebalance_cost_bps"`

	FeeTier     pool.FeeAmount `yaml:"fee_tier"`
	TickSpacing int            `yaml:"tick_spacing"`

	Decimals0 int `yaml:"decimals0"`
	Decimals1 int `yaml:"decimals1"`

	BarIntervalSeconds int64 `yaml:"bar_interval_seconds"`

	SQLitePath string `yaml:"sqlite_path"`
}

// Default returns the configuration populated with every documented default:
// price_range_pct 0.10, rebalance_cost_bps 100, fee_tier 3000 / tick_spacing
// 60, a 60s bar interval, and the named strategy params' published defaults
// (atr deviation_threshold 3%, rebalance_interval_s 180; alpha_vault
// rebalance interval 48h).
func Default() Config {
	return Config{
		InitialCapitalQuote:    decimal.NewFromInt(1_000_000),
		PriceRangePct:          decimal.NewFromFloat(0.10),
		StrategyName:           StrategyHold,
		ATRPeriod:              14,
		ATRMultiplier:          decimal.NewFromInt(2),
		RebalanceIntervalS:     180,
		DeviationThreshold:     decimal.NewFromFloat(0.03),
		BaseThreshold:          1200,
		LimitThreshold:         600,
		AlphaRebalanceIntervalS: 48 * 3600,
		PositionWidthTicks:     1200,
		RebalanceThresholdBps:  decimal.NewFromInt(50),
		SMAPeriod:              20,
		StdMultiplier:          decimal.NewFromInt(2),
		MinWidthTicks:          60,
		RebalanceCostBps:       decimal.NewFromInt(100),
		FeeTier:                pool.FeeMedium,
		TickSpacing:            60,
		Decimals0:              18,
		Decimals1:              6,
		BarIntervalSeconds:     60,
	}
}

// LoadConfig reads and parses a YAML config file, starting from Default()
// so unset fields keep their documented defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the driver could not otherwise run,
// surfacing them as an error up front rather than panicking deep inside the
// backtest loop.
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("config: data_path is required")
	}
	if c.TickSpacing <= 0 {
		return fmt.Errorf("config: tick_spacing must be positive")
	}
	if c.EndTimestamp != 0 && c.StartTimestamp != 0 && c.EndTimestamp < c.StartTimestamp {
		return fmt.Errorf("config: end_timestamp before start_timestamp")
	}
	switch c.StrategyName {
	case StrategyHold, StrategyPassiveRange, StrategyATR, StrategyAlphaVault, StrategyFixedWidth, StrategyBollinger:
	default:
		return fmt.Errorf("config: unknown strategy %q", c.StrategyName)
	}
	return nil
}
