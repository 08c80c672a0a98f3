package strategy

import (
	"context"
	"errors"
	"math"
	"time"

	"niftybt/backtest"
	"niftybt/marketdata"
	"niftybt/options"
)

func init() {
	Register("short_strangle", func(params map[string]any, deps Deps) (backtest.Strategy, error) {
		var p ShortStrangleParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if deps.Premiums == nil {
			return nil, errors.New("strategy: short_strangle needs a premium source")
		}
		return NewShortStrangle(p, deps.Premiums), nil
	})
}

type ShortStrangleParams struct {
	// EntryWeekday uses 0=Monday..4=Friday; unset allows any weekday.
	// Thursday entries collide with weekly expiry.
	EntryWeekday     *int    `yaml:"entry_weekday" json:"entry_weekday"`
	HoldDays         int     `yaml:"hold_days" json:"hold_days"`
	StrikeWidthPct   float64 `yaml:"strike_width_pct" json:"strike_width_pct"`
	ProfitTargetPct  float64 `yaml:"profit_target_pct" json:"profit_target_pct"`
	StopLossPct      float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	StrikeStep       float64 `yaml:"strike_step" json:"strike_step"`
	LotSize          int     `yaml:"lot_size" json:"lot_size"`
	IVPercentileMax  float64 `yaml:"iv_percentile_max" json:"iv_percentile_max"`
	ATRPeriod        int     `yaml:"atr_period" json:"atr_period"`
	MinDaysToExpiry  int     `yaml:"min_days_to_expiry" json:"min_days_to_expiry"`
	MaxDaysToExpiry  int     `yaml:"max_days_to_expiry" json:"max_days_to_expiry"`
	ExitBeforeExpiry int     `yaml:"exit_before_expiry" json:"exit_before_expiry"`
}

func (p ShortStrangleParams) withDefaults() ShortStrangleParams {
	if p.HoldDays <= 0 {
		p.HoldDays = 7
	}
	if p.StrikeWidthPct <= 0 {
		p.StrikeWidthPct = 0.05
	}
	if p.ProfitTargetPct <= 0 {
		p.ProfitTargetPct = 0.50
	}
	if p.StopLossPct <= 0 {
		p.StopLossPct = 2.0
	}
	if p.StrikeStep <= 0 {
		p.StrikeStep = 50
	}
	if p.LotSize <= 0 {
		p.LotSize = 75
	}
	if p.IVPercentileMax <= 0 {
		p.IVPercentileMax = 90
	}
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = 14
	}
	if p.MinDaysToExpiry <= 0 {
		p.MinDaysToExpiry = 7
	}
	if p.MaxDaysToExpiry <= 0 {
		p.MaxDaysToExpiry = 30
	}
	if p.ExitBeforeExpiry <= 0 {
		p.ExitBeforeExpiry = 2
	}
	return p
}

// ShortStrangle sells an OTM call and an OTM put around spot for a
// net credit, harvesting time decay while the underlying stays inside
// the strikes. Entries are gated on a low realized-volatility
// percentile; exits are hold-period expiry, approaching option expiry,
// profit target, or a stop at a multiple of the credit received.
type ShortStrangle struct {
	params   ShortStrangleParams
	premiums *options.Source

	open      *options.Spread
	hvHistory []float64
}

func NewShortStrangle(params ShortStrangleParams, premiums *options.Source) *ShortStrangle {
	return &ShortStrangle{params: params.withDefaults(), premiums: premiums}
}

func (s *ShortStrangle) Name() string { return "short_strangle" }

func (s *ShortStrangle) MinLookback() int { return s.params.ATRPeriod + 30 }

func (s *ShortStrangle) HoldDays() int { return s.params.HoldDays }

// VolProxy is the ATR the strategy prices premiums with; the engine
// uses the same figure when recording and revaluing the strangle.
func (s *ShortStrangle) VolProxy(history []backtest.Bar) float64 {
	return historyATR(history, s.params.ATRPeriod)
}

func (s *ShortStrangle) Clone() backtest.Strategy {
	return &ShortStrangle{params: s.params, premiums: s.premiums}
}

func (s *ShortStrangle) GenerateSignal(current backtest.Bar, history []backtest.Bar) (backtest.Signal, error) {
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
			if errors.Is(err, options.ErrPremiumUnavailable) || errors.Is(err, errNoExpiry) {
				return backtest.SignalHold, nil
			}
			return backtest.SignalHold, err
		}
		s.open = spread
		return backtest.SignalSellShort, nil
	}

	daysHeld := int(current.Time.Sub(s.open.EntryDate).Hours() / 24)
	if daysHeld >= s.params.HoldDays {
		s.open = nil
		return backtest.SignalBuyShort, nil
	}
	if int(s.open.Expiry.Sub(current.Time).Hours()/24) <= s.params.ExitBeforeExpiry {
		s.open = nil
		return backtest.SignalBuyShort, nil
	}

	value, err := s.PositionValue(context.Background(), s.open.Legs, s.open.Expiry,
		current.Time, current.Close, atr, s.params.HoldDays-daysHeld)
	if err != nil {
		return backtest.SignalHold, nil
	}
	// Credit structure: NetCost > 0, value is the (negative) cost of
	// buying the legs back.
	credit := s.open.NetCost
	if credit <= 0 {
		return backtest.SignalHold, nil
	}
	pnl := credit + value
	if pnl >= credit*s.params.ProfitTargetPct || pnl <= -credit*s.params.StopLossPct {
		s.open = nil
		return backtest.SignalBuyShort, nil
	}
	return backtest.SignalHold, nil
}

func (s *ShortStrangle) entryConditions(current backtest.Bar, history []backtest.Bar) bool {
	if s.params.EntryWeekday != nil {
		weekday := (int(current.Time.Weekday()) + 6) % 7
		if weekday != *s.params.EntryWeekday {
			return false
		}
	}
	return s.ivPercentile(history) <= s.params.IVPercentileMax
}

// ivPercentile ranks the current 20-day realized volatility against
// its own trailing year. Realized volatility stands in for implied.
func (s *ShortStrangle) ivPercentile(history []backtest.Bar) float64 {
	const (
		hvWindow  = 20
		hvHistory = 252
		hvMinObs  = 30
	)
	if len(history) < hvWindow+1 {
		return 50
	}

	var (
		sum, sumSq float64
		n          int
	)
	for i := len(history) - hvWindow; i < len(history); i++ {
		prev := history[i-1].Close
		if prev == 0 {
			continue
		}
		r := (history[i].Close - prev) / prev
		sum += r
		sumSq += r * r
		n++
	}
	if n < 2 {
		return 50
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	hv := math.Sqrt(variance) * math.Sqrt(252)

	s.hvHistory = append(s.hvHistory, hv)
	if len(s.hvHistory) > hvHistory {
		s.hvHistory = s.hvHistory[len(s.hvHistory)-hvHistory:]
	}
	if len(s.hvHistory) < hvMinObs {
		return 50
	}
	below := 0
	for _, h := range s.hvHistory {
		if h < hv {
			below++
		}
	}
	return float64(below) / float64(len(s.hvHistory)) * 100
}

var errNoExpiry = errors.New("strategy: no expiry inside the DTE band")

// nextExpiry picks the upcoming weekly expiry (Thursday), pushed a
// week out when closer than the minimum days to expiry.
func (s *ShortStrangle) nextExpiry(at time.Time) (time.Time, error) {
	daysAhead := (int(time.Thursday) - int(at.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	expiry := at.AddDate(0, 0, daysAhead)
	if daysAhead < s.params.MinDaysToExpiry {
		expiry = expiry.AddDate(0, 0, 7)
	}
	if dte := int(expiry.Sub(at).Hours() / 24); dte < s.params.MinDaysToExpiry || dte > s.params.MaxDaysToExpiry {
		return time.Time{}, errNoExpiry
	}
	return expiry, nil
}

// BuildSpread sells the call and put one strike-width away from spot.
func (s *ShortStrangle) BuildSpread(ctx context.Context, at time.Time, spot, volProxy float64, daysToExpiry int) (*options.Spread, error) {
	expiry, err := s.nextExpiry(at)
	if err != nil {
		return nil, err
	}

	width := spot * s.params.StrikeWidthPct
	callStrike := options.RoundToStrike(spot+width, s.params.StrikeStep)
	putStrike := options.RoundToStrike(spot-width, s.params.StrikeStep)
	lot := float64(s.params.LotSize)

	callPremium, err := s.premiums.Premium(ctx, callStrike, marketdata.OptionCall, expiry, at, spot, volProxy)
	if err != nil {
		return nil, err
	}
	putPremium, err := s.premiums.Premium(ctx, putStrike, marketdata.OptionPut, expiry, at, spot, volProxy)
	if err != nil {
		return nil, err
	}
	if callPremium <= 0 || putPremium <= 0 {
		return nil, options.ErrPremiumUnavailable
	}

	spread := options.NewSpread([]options.Leg{
		{Side: options.LegSell, Strike: callStrike, Type: marketdata.OptionCall, Qty: lot, EntryPremium: callPremium},
		{Side: options.LegSell, Strike: putStrike, Type: marketdata.OptionPut, Qty: lot, EntryPremium: putPremium},
	}, expiry)
	spread.EntryDate = at
	spread.MaxProfit = spread.NetCost // full credit kept if both expire worthless
	return spread, nil
}

// PositionValue is the signed cost of the open legs: negative, since
// both legs are short and must be bought back.
func (s *ShortStrangle) PositionValue(ctx context.Context, legs []options.Leg, expiry, at time.Time, spot, volProxy float64, daysRemaining int) (float64, error) {
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
