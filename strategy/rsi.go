package strategy

import (
	"niftybt/backtest"
	"niftybt/indicator"
)

func init() {
	Register("rsi", func(params map[string]any, _ Deps) (backtest.Strategy, error) {
		var p RSIParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewRSI(p), nil
	})
}

type RSIParams struct {
	Period      int     `yaml:"period" json:"period"`
	Oversold    float64 `yaml:"oversold" json:"oversold"`
	Overbought  float64 `yaml:"overbought" json:"overbought"`
	EnableShort *bool   `yaml:"enable_short" json:"enable_short"`
}

func (p RSIParams) withDefaults() RSIParams {
	if p.Period <= 0 {
		p.Period = 14
	}
	if p.Oversold <= 0 {
		p.Oversold = 30
	}
	if p.Overbought <= 0 {
		p.Overbought = 70
	}
	if p.EnableShort == nil {
		t := true
		p.EnableShort = &t
	}
	return p
}

// RSI trades threshold crossings of the Wilder-smoothed relative
// strength index: a cross down through oversold buys (or covers a
// short), a cross up through overbought sells (or opens a short).
type RSI struct {
	params  RSIParams
	side    backtest.Side
	prevRSI float64
	seeded  bool
}

func NewRSI(params RSIParams) *RSI {
	return &RSI{params: params.withDefaults(), side: backtest.SideFlat}
}

func (s *RSI) Name() string { return "rsi" }

func (s *RSI) MinLookback() int { return s.params.Period + 1 }

func (s *RSI) Clone() backtest.Strategy {
	return &RSI{params: s.params, side: backtest.SideFlat}
}

func (s *RSI) GenerateSignal(current backtest.Bar, history []backtest.Bar) (backtest.Signal, error) {
	if len(history) < s.params.Period+1 {
		return backtest.SignalHold, nil
	}
	closes := make([]float64, 0, len(history))
	for _, b := range history {
		closes = append(closes, b.Close)
	}
	rsi := indicator.RSI(closes, s.params.Period)

	// First reading only seeds the crossover state.
	if !s.seeded {
		s.seeded = true
		s.prevRSI = rsi
		return backtest.SignalHold, nil
	}
	prev := s.prevRSI
	s.prevRSI = rsi

	switch {
	case prev > s.params.Oversold && rsi <= s.params.Oversold:
		if s.side == backtest.SideShort {
			s.side = backtest.SideFlat
			return backtest.SignalBuyShort, nil
		}
		if s.side != backtest.SideLong {
			s.side = backtest.SideLong
			return backtest.SignalBuyLong, nil
		}
	case prev < s.params.Overbought && rsi >= s.params.Overbought:
		if s.side == backtest.SideLong {
			s.side = backtest.SideFlat
			return backtest.SignalSellLong, nil
		}
		if s.side != backtest.SideShort && *s.params.EnableShort {
			s.side = backtest.SideShort
			return backtest.SignalSellShort, nil
		}
	}
	return backtest.SignalHold, nil
}
