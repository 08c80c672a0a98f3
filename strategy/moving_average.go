package strategy

import (
	"niftybt/backtest"
	"niftybt/indicator"
)

func init() {
	Register("moving_average", func(params map[string]any, _ Deps) (backtest.Strategy, error) {
		var p MovingAverageParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewMovingAverage(p), nil
	})
}

type MovingAverageParams struct {
	ShortWindow int `yaml:"short_window" json:"short_window"`
	LongWindow  int `yaml:"long_window" json:"long_window"`
}

func (p MovingAverageParams) withDefaults() MovingAverageParams {
	if p.ShortWindow <= 0 {
		p.ShortWindow = 20
	}
	if p.LongWindow <= 0 {
		p.LongWindow = 50
	}
	if p.ShortWindow >= p.LongWindow {
		p.ShortWindow = 20
		p.LongWindow = 50
	}
	return p
}

// MovingAverage trades the crossover of two simple moving averages:
// BUY when the short average crosses above the long, SELL when it
// crosses back below while long.
type MovingAverage struct {
	params MovingAverageParams
	long   bool
}

func NewMovingAverage(params MovingAverageParams) *MovingAverage {
	return &MovingAverage{params: params.withDefaults()}
}

func (s *MovingAverage) Name() string { return "moving_average" }

// MinLookback needs one extra bar for the crossover comparison.
func (s *MovingAverage) MinLookback() int { return s.params.LongWindow + 1 }

func (s *MovingAverage) Clone() backtest.Strategy {
	return &MovingAverage{params: s.params}
}

func (s *MovingAverage) GenerateSignal(current backtest.Bar, history []backtest.Bar) (backtest.Signal, error) {
	if len(history) < s.params.LongWindow+1 {
		return backtest.SignalHold, nil
	}
	// Averages are computed on prior history only; the current bar
	// just times the execution.
	closes := make([]float64, 0, len(history))
	for _, b := range history {
		closes = append(closes, b.Close)
	}

	short := indicator.SMA(closes, s.params.ShortWindow)
	long := indicator.SMA(closes, s.params.LongWindow)
	prevShort := indicator.SMA(closes[:len(closes)-1], s.params.ShortWindow)
	prevLong := indicator.SMA(closes[:len(closes)-1], s.params.LongWindow)

	switch {
	case prevShort <= prevLong && short > long:
		if !s.long {
			s.long = true
			return backtest.SignalBuy, nil
		}
	case prevShort >= prevLong && short < long:
		if s.long {
			s.long = false
			return backtest.SignalSell, nil
		}
	}
	return backtest.SignalHold, nil
}
