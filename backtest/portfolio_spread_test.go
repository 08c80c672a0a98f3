package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niftybt/marketdata"
	"niftybt/options"
)

// fakeSpreadStrategy opens a fixed two-leg debit structure and marks it
// at a scripted value.
type fakeSpreadStrategy struct {
	scriptStrategy
	markValue float64
	buildErr  error
	credit    bool

	// vol overrides the proxy the strategy reports; priceFromVol makes
	// the legs' premiums a function of the proxy BuildSpread receives.
	vol          float64
	priceFromVol bool
}

func (f *fakeSpreadStrategy) Clone() Strategy {
	c := *f
	return &c
}

func (f *fakeSpreadStrategy) HoldDays() int { return 7 }

func (f *fakeSpreadStrategy) VolProxy(history []Bar) float64 {
	if len(history) < 15 {
		return 0
	}
	if f.vol > 0 {
		return f.vol
	}
	return 16
}

func (f *fakeSpreadStrategy) BuildSpread(ctx context.Context, at time.Time, spot, volProxy float64, daysToExpiry int) (*options.Spread, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	buyPremium, sellPremium := 180.0, 140.0
	if f.priceFromVol {
		buyPremium, sellPremium = volProxy, volProxy/2
	}
	var legs []options.Leg
	if f.credit {
		legs = []options.Leg{
			{Side: options.LegSell, Strike: 24700, Type: marketdata.OptionCall, Qty: 75, EntryPremium: 120},
			{Side: options.LegSell, Strike: 22300, Type: marketdata.OptionPut, Qty: 75, EntryPremium: 110},
		}
	} else {
		legs = []options.Leg{
			{Side: options.LegBuy, Strike: 23500, Type: marketdata.OptionPut, Qty: 75, EntryPremium: buyPremium},
			{Side: options.LegSell, Strike: 23400, Type: marketdata.OptionPut, Qty: 75, EntryPremium: sellPremium},
		}
	}
	return options.NewSpread(legs, at.AddDate(0, 0, daysToExpiry)), nil
}

func (f *fakeSpreadStrategy) PositionValue(ctx context.Context, legs []options.Leg, expiry, at time.Time, spot, volProxy float64, daysRemaining int) (float64, error) {
	return f.markValue, nil
}

func spreadTestBars() []marketdata.Candle {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 23500 + float64(i)*10
	}
	return makeCandles(closes...)
}

func spreadTestConfig(strat Strategy) RunConfig {
	return RunConfig{
		Symbol:        "NSE:NIFTY",
		InitialCash:   100000,
		BrokerageRate: 0.001,
		Strategy:      strat,
	}
}

func TestSpreadRoundTrip(t *testing.T) {
	provider := &fakeProvider{candles: spreadTestBars()}
	strat := &fakeSpreadStrategy{
		scriptStrategy: scriptStrategy{name: "spread", lookback: 15, signals: map[string]Signal{
			barDate(15): SignalBuy,
			barDate(18): SignalSell,
		}},
		markValue: 4500,
	}

	res, err := New(provider).Run(context.Background(), spreadTestConfig(strat))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	open := res.Trades[0]
	// Debit of (180-140)×75 paid at entry, fee on gross.
	assert.InDelta(t, -3000.0, open.Value, 1e-9)
	assert.InDelta(t, 3.0, open.Brokerage, 1e-9)
	assert.Equal(t, 75.0, open.Qty)
	assert.Equal(t, "BUY PE 23500 x75 @ 180.00 | SELL PE 23400 x75 @ 140.00", open.Options)
	assert.Nil(t, open.PnL)

	exit := res.Trades[1]
	assert.InDelta(t, 4500.0, exit.Value, 1e-9)
	require.NotNil(t, exit.PnL)
	// 4500 unwind - 3000 debit - 3 entry fee - 4.5 exit fee.
	assert.InDelta(t, 1492.5, *exit.PnL, 1e-9)
	assert.InDelta(t, 1492.5/3000*100, *exit.PnLPct, 1e-9)

	assert.Nil(t, res.OpenPosition)
	assert.InDelta(t, 100000+1492.5, res.Metrics.FinalEquity, 1e-9)
}

func TestSpreadCreditSideRoundTrip(t *testing.T) {
	provider := &fakeProvider{candles: spreadTestBars()}
	strat := &fakeSpreadStrategy{
		scriptStrategy: scriptStrategy{name: "spread", lookback: 15, signals: map[string]Signal{
			barDate(15): SignalSellShort,
			barDate(18): SignalBuyShort,
		}},
		markValue: -1500, // buying the structure back costs 1500
		credit:    true,
	}

	res, err := New(provider).Run(context.Background(), spreadTestConfig(strat))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	// With both legs still priced at entry the structure is net-short:
	// the recorded entry value is the credit collected.
	assert.Positive(t, res.Trades[0].Value, "credit structures collect premium")

	exit := res.Trades[1]
	require.NotNil(t, exit.PnL)
	assert.Equal(t, SignalBuyShort, exit.Action)
	assert.Nil(t, res.OpenPosition)
}

func TestSpreadEntrySkippedWithoutVolProxy(t *testing.T) {
	provider := &fakeProvider{candles: makeCandles(100, 101, 102, 103)}
	strat := &fakeSpreadStrategy{
		scriptStrategy: scriptStrategy{name: "spread", signals: map[string]Signal{
			barDate(1): SignalBuy, // too little history for an ATR
		}},
	}

	res, err := New(provider).Run(context.Background(), spreadTestConfig(strat))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "no volatility proxy")
}

func TestSpreadBuildErrorIsIsolated(t *testing.T) {
	provider := &fakeProvider{candles: spreadTestBars()}
	strat := &fakeSpreadStrategy{
		scriptStrategy: scriptStrategy{name: "spread", lookback: 15, signals: map[string]Signal{
			barDate(15): SignalBuy,
		}},
		buildErr: options.ErrPremiumUnavailable,
	}

	res, err := New(provider).Run(context.Background(), spreadTestConfig(strat))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "spread entry skipped")
}

func TestSpreadCloseOnEnd(t *testing.T) {
	provider := &fakeProvider{candles: spreadTestBars()}
	strat := &fakeSpreadStrategy{
		scriptStrategy: scriptStrategy{name: "spread", lookback: 15, signals: map[string]Signal{
			barDate(15): SignalBuy,
		}},
		markValue: 3600,
	}

	cfg := spreadTestConfig(strat)
	cfg.CloseOnEnd = true
	res, err := New(provider).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, "end of backtest", res.Trades[1].Reason)
	assert.Nil(t, res.OpenPosition)

	last := res.EquityCurve[len(res.EquityCurve)-1]
	assert.InDelta(t, res.Metrics.FinalEquity, last.Equity, 1e-9,
		"after liquidation the curve ends at realized cash")
}

func TestSpreadPricedWithStrategyVolProxy(t *testing.T) {
	provider := &fakeProvider{candles: spreadTestBars()}
	strat := &fakeSpreadStrategy{
		scriptStrategy: scriptStrategy{name: "spread", lookback: 15, signals: map[string]Signal{
			barDate(15): SignalBuy,
		}},
		vol:          42,
		priceFromVol: true,
	}

	res, err := New(provider).Run(context.Background(), spreadTestConfig(strat))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	// Premiums derive from the proxy the strategy itself reports, so
	// the recorded debit is (42 - 21)×75. A proxy computed from the
	// bars instead would price the legs differently and the ledger
	// would no longer match the strategy's exit thresholds.
	assert.InDelta(t, -1575.0, res.Trades[0].Value, 1e-9)
	require.NotNil(t, res.OpenPosition)
	assert.InDelta(t, -1575.0, res.OpenPosition.Spread.NetCost, 1e-9)
}

func TestSpreadQtyFollowsLegs(t *testing.T) {
	provider := &fakeProvider{candles: spreadTestBars()}
	strat := &fakeSpreadStrategy{
		scriptStrategy: scriptStrategy{name: "spread", lookback: 15, signals: map[string]Signal{
			barDate(15): SignalBuy,
		}},
		markValue: 3000,
	}

	cfg := spreadTestConfig(strat)
	cfg.LotSize = 50 // differs from the 75-lot legs the strategy builds
	res, err := New(provider).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 75.0, res.Trades[0].Qty, "trade quantity mirrors the legs")
	require.NotNil(t, res.OpenPosition)
	assert.Equal(t, 75.0, res.OpenPosition.Qty)
}
