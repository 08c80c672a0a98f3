package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"niftybt/backtest"
	"niftybt/strategy"
)

// RunFile is one backtest run described in YAML, the file the
// `-run` CLI mode consumes.
type RunFile struct {
	Symbol        string         `yaml:"symbol"`
	Start         string         `yaml:"start"`
	End           string         `yaml:"end"`
	InitialCash   float64        `yaml:"initial_cash"`
	BrokerageRate float64        `yaml:"brokerage_rate"`
	FixedQty      float64        `yaml:"fixed_qty"`
	PositionPct   float64        `yaml:"position_pct"`
	LotSize       int            `yaml:"lot_size"`
	CloseOnEnd    bool           `yaml:"close_on_end"`
	StrictErrors  bool           `yaml:"strict_errors"`
	Strategy      string         `yaml:"strategy"`
	Params        map[string]any `yaml:"params"`
}

// LoadRunFile reads and parses a run description.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse run file: %w", err)
	}
	return &rf, nil
}

// Build resolves the strategy and assembles an engine RunConfig,
// falling back to the service defaults for unset trading costs.
func (r *RunFile) Build(defaults *Config, deps strategy.Deps) (backtest.RunConfig, error) {
	var cfg backtest.RunConfig

	strat, err := strategy.New(r.Strategy, r.Params, deps)
	if err != nil {
		return cfg, err
	}

	const layout = "2006-01-02"
	var start, end time.Time
	if r.Start != "" {
		if start, err = time.Parse(layout, r.Start); err != nil {
			return cfg, fmt.Errorf("parse start date: %w", err)
		}
	}
	if r.End != "" {
		if end, err = time.Parse(layout, r.End); err != nil {
			return cfg, fmt.Errorf("parse end date: %w", err)
		}
	}

	cfg = backtest.RunConfig{
		Symbol:        r.Symbol,
		Start:         start,
		End:           end,
		InitialCash:   r.InitialCash,
		BrokerageRate: r.BrokerageRate,
		FixedQty:      r.FixedQty,
		PositionPct:   r.PositionPct,
		LotSize:       r.LotSize,
		CloseOnEnd:    r.CloseOnEnd,
		StrictErrors:  r.StrictErrors,
		Strategy:      strat,
	}
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = defaults.InitialCash
	}
	if cfg.BrokerageRate <= 0 {
		cfg.BrokerageRate = defaults.BrokerageRate
	}
	if cfg.LotSize <= 0 {
		cfg.LotSize = defaults.LotSize
	}
	return cfg, nil
}
