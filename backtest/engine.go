package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"niftybt/marketdata"
)

var (
	// ErrNoData means the provider returned no bars for the requested
	// symbol/date range. Fatal: no trades are produced.
	ErrNoData = errors.New("backtest: no bars for symbol/date range")

	// ErrInvalidConfig covers precondition violations: non-positive
	// cash, inverted date range, negative brokerage, missing strategy.
	ErrInvalidConfig = errors.New("backtest: invalid configuration")
)

// RunConfig describes one backtest run.
type RunConfig struct {
	Symbol        string
	Start         time.Time
	End           time.Time
	InitialCash   float64
	BrokerageRate float64 // fraction of trade value, charged on entry and exit
	LotSize       int     // fallback contract lot when a spread's legs carry no size (NIFTY standard: 75)

	// Underlying sizing: FixedQty wins when > 0, otherwise
	// floor(cash × PositionPct / price).
	FixedQty    float64
	PositionPct float64

	// CloseOnEnd force-closes a residual position at the last bar's
	// close. Default leaves it open: excluded from realized metrics,
	// included in final equity as mark-to-market.
	CloseOnEnd bool

	// StrictErrors makes a per-bar strategy fault fatal. Default
	// isolates it: logged, recorded in Result.Errors, treated as HOLD.
	StrictErrors bool

	Strategy Strategy
	Progress ProgressFunc
}

func (c *RunConfig) validate() error {
	if c.Strategy == nil {
		return fmt.Errorf("%w: no strategy", ErrInvalidConfig)
	}
	if c.Symbol == "" {
		return fmt.Errorf("%w: no symbol", ErrInvalidConfig)
	}
	if c.InitialCash <= 0 {
		return fmt.Errorf("%w: initial cash must be positive, got %.2f", ErrInvalidConfig, c.InitialCash)
	}
	if c.BrokerageRate < 0 {
		return fmt.Errorf("%w: negative brokerage rate %.6f", ErrInvalidConfig, c.BrokerageRate)
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidConfig,
			c.End.Format("2006-01-02"), c.Start.Format("2006-01-02"))
	}
	if c.PositionPct <= 0 {
		c.PositionPct = 0.95
	}
	if c.LotSize <= 0 {
		c.LotSize = 75
	}
	return nil
}

// Engine replays bars against a strategy and keeps the simulated
// portfolio. One Engine may serve many runs; each run owns an
// independent strategy clone and portfolio.
type Engine struct {
	data marketdata.Provider
}

// New creates an engine on top of a market data provider.
func New(data marketdata.Provider) *Engine {
	return &Engine{data: data}
}

// Run executes one deterministic, sequential replay. A fatal error
// (no data, invalid config, strict-mode strategy fault, cancellation)
// discards the in-progress trade log and returns no Result.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	report(cfg.Progress, 5, "fetching bars...")
	bars, err := e.loadBars(ctx, cfg)
	if err != nil {
		return nil, err
	}

	report(cfg.Progress, 15, "preparing strategy...")
	strat := cfg.Strategy.Clone()
	p := newPortfolio(cfg)

	n := len(bars)
	lookback := strat.MinLookback()
	progressEvery := n / 50
	if progressEvery < 1 {
		progressEvery = 1
	}

	for i := 0; i < n; i++ {
		// Cooperative stop between bars.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bar := bars[i]
		history := bars[:i]

		sig := SignalHold
		if i >= lookback {
			sig, err = evalSignal(strat, bar, history)
			if err != nil {
				if cfg.StrictErrors {
					return nil, fmt.Errorf("strategy %s at bar %s: %w",
						strat.Name(), bar.Time.Format("2006-01-02"), err)
				}
				log.Printf("[backtest] %s: strategy error at %s treated as HOLD: %v",
					cfg.Symbol, bar.Time.Format("2006-01-02"), err)
				p.fault(fmt.Sprintf("%s: strategy error: %v", bar.Time.Format("2006-01-02"), err))
				sig = SignalHold
			}
		}

		if sig != SignalHold {
			p.apply(ctx, sig, strat, bar, history)
		}
		p.markBar(ctx, strat, bar, history)

		if i%progressEvery == 0 {
			report(cfg.Progress, 20+int(float64(i)/float64(n)*70),
				fmt.Sprintf("processing bar %d/%d", i+1, n))
		}
	}

	if cfg.CloseOnEnd && p.pos.Side != SideFlat {
		p.forceClose(ctx, strat, bars[n-1])
	}

	report(cfg.Progress, 95, "calculating metrics...")
	res := p.result(strat.Name())
	report(cfg.Progress, 100, "backtest complete")
	return res, nil
}

// loadBars fetches, converts, and orders the underlying bar sequence.
func (e *Engine) loadBars(ctx context.Context, cfg RunConfig) ([]Bar, error) {
	candles, err := e.data.Bars(ctx, cfg.Symbol, cfg.Start, cfg.End)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, cfg.Symbol,
				cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02"))
		}
		return nil, fmt.Errorf("fetch bars for %s: %w", cfg.Symbol, err)
	}

	bars := make([]Bar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, Bar{
			Time:   c.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, cfg.Symbol)
	}
	return bars, nil
}

// evalSignal isolates one strategy invocation: a panic inside a
// strategy must not take down the whole run.
func evalSignal(s Strategy, bar Bar, history []Bar) (sig Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig = SignalHold
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return s.GenerateSignal(bar, history)
}

func report(fn ProgressFunc, percent int, message string) {
	if fn != nil {
		fn(percent, message)
	}
}
