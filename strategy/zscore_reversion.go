package strategy

import (
	"math"

	"niftybt/backtest"
	"niftybt/indicator"
)

func init() {
	Register("zscore_reversion", func(params map[string]any, _ Deps) (backtest.Strategy, error) {
		var p ZScoreParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewZScoreReversion(p), nil
	})
}

type ZScoreParams struct {
	Lookback       int     `yaml:"lookback_period" json:"lookback_period"`
	EntryThreshold float64 `yaml:"entry_threshold" json:"entry_threshold"`
	ExitThreshold  float64 `yaml:"exit_threshold" json:"exit_threshold"`
	EnableShort    *bool   `yaml:"enable_short" json:"enable_short"`
}

func (p ZScoreParams) withDefaults() ZScoreParams {
	if p.Lookback <= 0 {
		p.Lookback = 20
	}
	if p.EntryThreshold <= 0 {
		p.EntryThreshold = 2.0
	}
	if p.ExitThreshold <= 0 {
		p.ExitThreshold = 0.5
	}
	if p.EnableShort == nil {
		t := true
		p.EnableShort = &t
	}
	return p
}

// ZScoreReversion fades large deviations of the close from its rolling
// mean: long when the z-score drops through -entry, short when it
// rises through +entry, flat when it reverts inside the exit band.
type ZScoreReversion struct {
	params ZScoreParams
	side   backtest.Side
}

func NewZScoreReversion(params ZScoreParams) *ZScoreReversion {
	return &ZScoreReversion{params: params.withDefaults(), side: backtest.SideFlat}
}

func (s *ZScoreReversion) Name() string { return "zscore_reversion" }

func (s *ZScoreReversion) MinLookback() int { return s.params.Lookback }

func (s *ZScoreReversion) Clone() backtest.Strategy {
	return &ZScoreReversion{params: s.params, side: backtest.SideFlat}
}

func (s *ZScoreReversion) GenerateSignal(current backtest.Bar, history []backtest.Bar) (backtest.Signal, error) {
	if len(history) < s.params.Lookback {
		return backtest.SignalHold, nil
	}
	closes := make([]float64, 0, len(history))
	for _, b := range history {
		closes = append(closes, b.Close)
	}
	mean := indicator.SMA(closes, s.params.Lookback)
	sd := indicator.StdDev(closes, s.params.Lookback)
	if sd == 0 {
		return backtest.SignalHold, nil
	}
	z := (current.Close - mean) / sd

	switch {
	case z <= -s.params.EntryThreshold:
		if s.side == backtest.SideShort {
			s.side = backtest.SideFlat
			return backtest.SignalBuyShort, nil
		}
		if s.side != backtest.SideLong {
			s.side = backtest.SideLong
			return backtest.SignalBuyLong, nil
		}
	case z >= s.params.EntryThreshold:
		if s.side == backtest.SideLong {
			s.side = backtest.SideFlat
			return backtest.SignalSellLong, nil
		}
		if s.side != backtest.SideShort && *s.params.EnableShort {
			s.side = backtest.SideShort
			return backtest.SignalSellShort, nil
		}
	case math.Abs(z) <= s.params.ExitThreshold:
		switch s.side {
		case backtest.SideLong:
			s.side = backtest.SideFlat
			return backtest.SignalSellLong, nil
		case backtest.SideShort:
			s.side = backtest.SideFlat
			return backtest.SignalBuyShort, nil
		}
	}
	return backtest.SignalHold, nil
}
