package backtest

import (
	"context"
	"time"

	"niftybt/options"
)

// Signal is a strategy's per-bar decision. BUY_LONG/SELL_LONG and
// SELL_SHORT/BUY_SHORT open and close a specific side; plain BUY/SELL
// are used by strategies that do not distinguish direction-of-open
// from direction-of-close.
type Signal string

const (
	SignalHold      Signal = "HOLD"
	SignalBuyLong   Signal = "BUY_LONG"
	SignalSellLong  Signal = "SELL_LONG"
	SignalBuyShort  Signal = "BUY_SHORT"
	SignalSellShort Signal = "SELL_SHORT"
	SignalBuy       Signal = "BUY"
	SignalSell      Signal = "SELL"
)

// Side is the open exposure's direction.
type Side string

const (
	SideFlat  Side = "flat"
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Bar is one OHLCV sample. Immutable once produced; bars are strictly
// ordered by time and the engine never shows a strategy anything at or
// after the current index.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Strategy is the pluggable decision contract. GenerateSignal sees the
// current bar plus strictly prior history and returns one Signal.
// Implementations may hold mutable state scoped to a single run; the
// engine calls Clone before every run so state never leaks across runs.
type Strategy interface {
	Name() string
	MinLookback() int
	GenerateSignal(current Bar, history []Bar) (Signal, error)
	Clone() Strategy
}

// SpreadStrategy trades multi-leg option structures instead of the
// underlying. VolProxy is the volatility input the strategy prices
// with; the engine feeds it back into BuildSpread and PositionValue so
// the recorded legs and marks match the strategy's own decision state.
// BuildSpread must be deterministic in its inputs.
type SpreadStrategy interface {
	Strategy
	HoldDays() int
	VolProxy(history []Bar) float64
	BuildSpread(ctx context.Context, at time.Time, spot, volProxy float64, daysToExpiry int) (*options.Spread, error)
	PositionValue(ctx context.Context, legs []options.Leg, expiry, at time.Time, spot, volProxy float64, daysRemaining int) (float64, error)
}

// Position is the single open exposure: either the underlying
// (Side/Qty/EntryPrice) or an option spread (Spread set, Side is the
// directional label the strategy keys re-entry guards off).
type Position struct {
	Side       Side      `json:"side"`
	Qty        float64   `json:"qty"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	EntryFee   float64   `json:"entry_fee"`

	Spread *options.Spread `json:"spread,omitempty"`
	// LastValue is the spread's most recent successful revaluation;
	// kept when a bar's premiums are unavailable.
	LastValue float64 `json:"last_value,omitempty"`
}

// Trade is one append-only log entry, created exactly once per open or
// close and never mutated. PnL fields are present only on closes.
type Trade struct {
	Date      time.Time `json:"date"`
	Action    Signal    `json:"action"`
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
	Value     float64   `json:"value"`
	Brokerage float64   `json:"brokerage"`
	PnL       *float64  `json:"pnl,omitempty"`
	PnLPct    *float64  `json:"pnl_pct,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Options   string    `json:"options,omitempty"`
}

// EquityPoint is one sample of the mark-to-market equity curve.
type EquityPoint struct {
	Time   string  `json:"time"`
	Equity float64 `json:"equity"`
}

// Metrics summarizes the realized outcome of a run. Trade counts and
// win rate consider closing trades only.
type Metrics struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRatePct     float64 `json:"win_rate_pct"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`
	FinalEquity    float64 `json:"final_equity"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	TotalBrokerage float64 `json:"total_brokerage"`
}

// Result is the full outcome of one run. Errors collects isolated
// per-bar problems (strategy faults, premium misses); fatal errors
// never produce a Result at all.
type Result struct {
	RunID        string        `json:"run_id,omitempty"`
	Symbol       string        `json:"symbol"`
	Strategy     string        `json:"strategy"`
	Trades       []Trade       `json:"trades"`
	Metrics      Metrics       `json:"metrics"`
	EquityCurve  []EquityPoint `json:"equity_curve"`
	OpenPosition *Position     `json:"open_position,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
}

// ProgressFunc receives bounded-cadence progress notifications.
// Fire-and-forget: it must not block and cannot affect the run.
type ProgressFunc func(percent int, message string)
