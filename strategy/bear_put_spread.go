package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"niftybt/backtest"
	"niftybt/indicator"
	"niftybt/marketdata"
	"niftybt/options"
)

func init() {
	Register("bear_put_spread", func(params map[string]any, deps Deps) (backtest.Strategy, error) {
		var p BearPutSpreadParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if deps.Premiums == nil {
			return nil, errors.New("strategy: bear_put_spread needs a premium source")
		}
		return NewBearPutSpread(p, deps.Premiums), nil
	})
}

// errSpreadTooCheap rejects entries whose debit is too small to carry
// a realistic probability of profit.
var errSpreadTooCheap = errors.New("strategy: spread debit below minimum")

type BearPutSpreadParams struct {
	// EntryWeekday uses 0=Monday..4=Friday; -1 allows any weekday.
	EntryWeekday        int     `yaml:"entry_weekday" json:"entry_weekday"`
	HoldDays            int     `yaml:"hold_days" json:"hold_days"`
	ProfitTargetPct     float64 `yaml:"profit_target_pct" json:"profit_target_pct"`
	StopLossPct         float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	StrikeSpacing       float64 `yaml:"strike_spacing" json:"strike_spacing"`
	MomentumThreshold   float64 `yaml:"momentum_threshold" json:"momentum_threshold"`
	VolatilityThreshold float64 `yaml:"volatility_threshold" json:"volatility_threshold"`
	ATRPeriod           int     `yaml:"atr_period" json:"atr_period"`
	MomentumLookback    int     `yaml:"momentum_lookback" json:"momentum_lookback"`
	LotSize             int     `yaml:"lot_size" json:"lot_size"`
}

func (p BearPutSpreadParams) withDefaults() BearPutSpreadParams {
	if p.HoldDays <= 0 {
		p.HoldDays = 7
	}
	if p.ProfitTargetPct <= 0 {
		p.ProfitTargetPct = 0.50
	}
	if p.StopLossPct <= 0 {
		p.StopLossPct = 0.75
	}
	if p.StrikeSpacing <= 0 {
		p.StrikeSpacing = 100
	}
	if p.MomentumThreshold == 0 {
		p.MomentumThreshold = -0.0005
	}
	if p.VolatilityThreshold <= 0 {
		p.VolatilityThreshold = 0.5
	}
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = 14
	}
	if p.MomentumLookback <= 0 {
		p.MomentumLookback = 20
	}
	if p.LotSize <= 0 {
		p.LotSize = 75
	}
	return p
}

// BearPutSpread buys a put at the strike just above spot and sells one
// a strike-spacing lower, paying a net debit that profits from a
// moderate decline. Entries require the configured weekday, negative
// momentum, and volatility near or above its own recent average; exits
// are hold-period expiry, profit target, or stop loss.
type BearPutSpread struct {
	params   BearPutSpreadParams
	premiums *options.Source

	open *options.Spread
}

func NewBearPutSpread(params BearPutSpreadParams, premiums *options.Source) *BearPutSpread {
	return &BearPutSpread{params: params.withDefaults(), premiums: premiums}
}

func (s *BearPutSpread) Name() string { return "bear_put_spread" }

// MinLookback gives the volatility-ratio gate room to warm up.
func (s *BearPutSpread) MinLookback() int { return 100 }

func (s *BearPutSpread) HoldDays() int { return s.params.HoldDays }

// VolProxy is the ATR the strategy prices premiums with; the engine
// uses the same figure when recording and revaluing the spread.
func (s *BearPutSpread) VolProxy(history []backtest.Bar) float64 {
	return historyATR(history, s.params.ATRPeriod)
}

func (s *BearPutSpread) Clone() backtest.Strategy {
	return &BearPutSpread{params: s.params, premiums: s.premiums}
}

func (s *BearPutSpread) GenerateSignal(current backtest.Bar, history []backtest.Bar) (backtest.Signal, error) {
	if len(history) < s.MinLookback() {
		return backtest.SignalHold, nil
	}

	atr := s.VolProxy(history)
	if atr <= 0 {
		return backtest.SignalHold, nil
	}

	if s.open == nil {
		if !s.entryConditions(current, history) {
			return backtest.SignalHold, nil
		}
		spread, err := s.BuildSpread(context.Background(), current.Time, current.Close, atr, s.params.HoldDays)
		if err != nil {
			if errors.Is(err, errSpreadTooCheap) || errors.Is(err, options.ErrPremiumUnavailable) {
				return backtest.SignalHold, nil
			}
			return backtest.SignalHold, err
		}
		s.open = spread
		return backtest.SignalBuy, nil
	}

	daysHeld := int(current.Time.Sub(s.open.EntryDate).Hours() / 24)
	if daysHeld >= s.params.HoldDays {
		s.open = nil
		return backtest.SignalSell, nil
	}

	value, err := s.PositionValue(context.Background(), s.open.Legs, s.open.Expiry,
		current.Time, current.Close, atr, s.params.HoldDays-daysHeld)
	if err != nil {
		// Unpriceable bar: only the time exit applies.
		return backtest.SignalHold, nil
	}
	debit := math.Abs(s.open.NetCost)
	if debit <= 0 {
		return backtest.SignalHold, nil
	}
	pnlPct := (value - debit) / debit
	if pnlPct >= s.params.ProfitTargetPct || pnlPct <= -s.params.StopLossPct {
		s.open = nil
		return backtest.SignalSell, nil
	}
	return backtest.SignalHold, nil
}

func (s *BearPutSpread) entryConditions(current backtest.Bar, history []backtest.Bar) bool {
	if s.params.EntryWeekday >= 0 {
		// 0=Monday convention.
		weekday := (int(current.Time.Weekday()) + 6) % 7
		if weekday != s.params.EntryWeekday {
			return false
		}
	}

	closes := make([]float64, 0, len(history))
	for _, b := range history {
		closes = append(closes, b.Close)
	}
	if indicator.Momentum(closes, s.params.MomentumLookback) > s.params.MomentumThreshold {
		return false
	}

	// Volatility ratio: recent ATR against the ATR one window back.
	// Skipped early in the dataset, like the momentum warm-up.
	if len(history) >= s.params.ATRPeriod*3 {
		recent := historyATR(history, s.params.ATRPeriod)
		avg := historyATR(history[:len(history)-s.params.ATRPeriod], s.params.ATRPeriod)
		if avg > 0 && recent/avg < s.params.VolatilityThreshold {
			return false
		}
	}
	return true
}

// BuildSpread prices the two puts and packages them as a debit spread.
func (s *BearPutSpread) BuildSpread(ctx context.Context, at time.Time, spot, volProxy float64, daysToExpiry int) (*options.Spread, error) {
	higher := options.RoundToStrike(spot, s.params.StrikeSpacing)
	if higher < spot {
		higher += s.params.StrikeSpacing
	}
	lower := higher - s.params.StrikeSpacing
	expiry := at.AddDate(0, 0, daysToExpiry)
	lot := float64(s.params.LotSize)

	buyPremium, err := s.premiums.Premium(ctx, higher, marketdata.OptionPut, expiry, at, spot, volProxy)
	if err != nil {
		return nil, fmt.Errorf("price long put %.0f: %w", higher, err)
	}
	sellPremium, err := s.premiums.Premium(ctx, lower, marketdata.OptionPut, expiry, at, spot, volProxy)
	if err != nil {
		return nil, fmt.Errorf("price short put %.0f: %w", lower, err)
	}

	spread := options.NewSpread([]options.Leg{
		{Side: options.LegBuy, Strike: higher, Type: marketdata.OptionPut, Qty: lot, EntryPremium: buyPremium},
		{Side: options.LegSell, Strike: lower, Type: marketdata.OptionPut, Qty: lot, EntryPremium: sellPremium},
	}, expiry)
	spread.EntryDate = at

	debit := math.Abs(spread.NetCost)
	if debit < s.params.StrikeSpacing*lot*0.001 {
		return nil, errSpreadTooCheap
	}
	spread.MaxLoss = debit
	spread.MaxProfit = (higher-lower)*lot - debit
	return spread, nil
}

// PositionValue marks the spread with current premiums for each leg.
func (s *BearPutSpread) PositionValue(ctx context.Context, legs []options.Leg, expiry, at time.Time, spot, volProxy float64, daysRemaining int) (float64, error) {
	var value float64
	for _, leg := range legs {
		premium, err := s.premiums.Premium(ctx, leg.Strike, leg.Type, expiry, at, spot, volProxy)
		if err != nil {
			return 0, err
		}
		if leg.Side == options.LegSell {
			value -= premium * leg.Qty
		} else {
			value += premium * leg.Qty
		}
	}
	return value, nil
}

// historyATR computes the ATR over the tail of prior history.
func historyATR(history []backtest.Bar, period int) float64 {
	if len(history) < period+1 {
		return 0
	}
	highs := make([]float64, len(history))
	lows := make([]float64, len(history))
	closes := make([]float64, len(history))
	for i, b := range history {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	return indicator.ATR(highs, lows, closes, period)
}
