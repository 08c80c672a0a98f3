package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pf(v float64) *float64 { return &v }

func TestComputeMetricsCounts(t *testing.T) {
	trades := []Trade{
		{Action: SignalBuyLong},            // open, ignored
		{Action: SignalSellLong, PnL: pf(100)},
		{Action: SignalSellShort},
		{Action: SignalBuyShort, PnL: pf(-40)},
		{Action: SignalSell, PnL: pf(0)}, // breakeven counts as a loss
	}
	m := computeMetrics(1000, trades, nil, 25, 3.5)

	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.InDelta(t, 100.0/3, m.WinRatePct, 1e-9)
	assert.InDelta(t, 60.0, m.TotalPnL, 1e-9)
	assert.InDelta(t, 1085.0, m.FinalEquity, 1e-9, "initial + realized + unrealized")
	assert.InDelta(t, 8.5, m.TotalReturnPct, 1e-9)
	assert.Equal(t, 25.0, m.UnrealizedPnL)
	assert.Equal(t, 3.5, m.TotalBrokerage)
}

func TestMaxDrawdown(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 1000}, {Equity: 1200}, {Equity: 900}, {Equity: 1100}, {Equity: 1050},
	}
	// Deepest fall: 1200 down to 900.
	assert.InDelta(t, 25.0, maxDrawdown(curve), 1e-9)

	assert.Equal(t, 0.0, maxDrawdown(nil))
	assert.Equal(t, 0.0, maxDrawdown([]EquityPoint{{Equity: 1000}, {Equity: 1100}}), "monotonic curve never draws down")
}

func TestSharpeDegenerateCases(t *testing.T) {
	assert.Equal(t, 0.0, sharpe(nil))
	assert.Equal(t, 0.0, sharpe([]EquityPoint{{Equity: 1000}}))
	flat := []EquityPoint{{Equity: 1000}, {Equity: 1000}, {Equity: 1000}}
	assert.Equal(t, 0.0, sharpe(flat), "zero variance yields no ratio")
}

func TestSharpeSignsFollowDrift(t *testing.T) {
	up := []EquityPoint{{Equity: 1000}, {Equity: 1010}, {Equity: 1015}, {Equity: 1030}}
	down := []EquityPoint{{Equity: 1000}, {Equity: 990}, {Equity: 985}, {Equity: 970}}
	assert.Positive(t, sharpe(up))
	assert.Negative(t, sharpe(down))
}
