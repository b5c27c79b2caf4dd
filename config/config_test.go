package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValidGivenDataPath(t *testing.T) {
	cfg := Default()
	cfg.DataPath = "events.jsonl"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingDataPath(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := Default()
	cfg.DataPath = "events.jsonl"
	cfg.StrategyName = "not_a_strategy"
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "data_path: events.jsonl\nstrategy: atr\natr_period: 21\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, StrategyATR, cfg.StrategyName)
	assert.Equal(t, 21, cfg.ATRPeriod)
	assert.Equal(t, 60, cfg.TickSpacing, "unset fields keep Default()'s value")
}
