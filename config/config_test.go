package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niftybt/strategy"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9000
data:
  db_path: /tmp/test.db
  premium_window_hours: 48
backtest:
  brokerage_rate: 0.002
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 48*time.Hour, cfg.PremiumWindow)
	assert.Equal(t, 0.002, cfg.BrokerageRate)
	// Unset fields keep defaults.
	assert.Equal(t, DefaultConfig.InitialCash, cfg.InitialCash)
	assert.Equal(t, DefaultConfig.LotSize, cfg.LotSize)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile("/no/such/path.yaml")
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "::: not yaml :::")
	_, err = LoadFromFile(bad)
	assert.Error(t, err)
}

func TestGetConfigPrecedence(t *testing.T) {
	t.Setenv("NIFTYBT_DB", "/env/override.db")
	t.Setenv("NIFTYBT_PORT", "7070")

	cfg := GetConfig("")
	assert.Equal(t, "/env/override.db", cfg.DBPath)
	assert.Equal(t, 7070, cfg.Port)

	path := writeFile(t, "config.yaml", "server:\n  port: 9000\n")
	cfg = GetConfig(path)
	assert.Equal(t, 7070, cfg.Port, "environment is applied after the file")
}

func TestGetConfigMissingFileFallsBack(t *testing.T) {
	cfg := GetConfig("/no/such/config.yaml")
	assert.Equal(t, DefaultConfig.Port, cfg.Port)
	assert.Equal(t, DefaultConfig.DBPath, cfg.DBPath)
}

func TestRunFileBuild(t *testing.T) {
	path := writeFile(t, "run.yaml", `
symbol: NSE:NIFTY
start: "2024-01-01"
end: "2024-06-30"
fixed_qty: 50
close_on_end: true
strategy: moving_average
params:
  short_window: 10
  long_window: 30
`)
	rf, err := LoadRunFile(path)
	require.NoError(t, err)
	assert.Equal(t, "NSE:NIFTY", rf.Symbol)

	cfg, err := rf.Build(&DefaultConfig, strategy.Deps{})
	require.NoError(t, err)
	assert.Equal(t, "NSE:NIFTY", cfg.Symbol)
	assert.Equal(t, 2024, cfg.Start.Year())
	assert.Equal(t, time.June, cfg.End.Month())
	assert.Equal(t, 50.0, cfg.FixedQty)
	assert.True(t, cfg.CloseOnEnd)
	assert.Equal(t, "moving_average", cfg.Strategy.Name())
	assert.Equal(t, 31, cfg.Strategy.MinLookback())

	// Trading costs fall back to service defaults.
	assert.Equal(t, DefaultConfig.InitialCash, cfg.InitialCash)
	assert.Equal(t, DefaultConfig.BrokerageRate, cfg.BrokerageRate)
	assert.Equal(t, DefaultConfig.LotSize, cfg.LotSize)
}

func TestRunFileBuildErrors(t *testing.T) {
	rf := &RunFile{Symbol: "NSE:NIFTY", Strategy: "no_such_strategy"}
	_, err := rf.Build(&DefaultConfig, strategy.Deps{})
	assert.ErrorIs(t, err, strategy.ErrUnknown)

	rf = &RunFile{Symbol: "NSE:NIFTY", Strategy: "moving_average", Start: "01/01/2024"}
	_, err = rf.Build(&DefaultConfig, strategy.Deps{})
	assert.Error(t, err, "bad date format")
}
