package backtest

import (
	"context"
	"fmt"
	"math"
)

// portfolio holds the mutable run state: the cash ledger, the single
// open position, and the append-only trade log. All transitions happen
// at the current bar's close.
type portfolio struct {
	cfg RunConfig

	cash      float64
	pos       Position
	trades    []Trade
	equity    []EquityPoint
	errs      []string
	brokerage float64
}

func newPortfolio(cfg RunConfig) *portfolio {
	return &portfolio{cfg: cfg, cash: cfg.InitialCash, pos: Position{Side: SideFlat}}
}

func (p *portfolio) fault(msg string) {
	p.errs = append(p.errs, msg)
}

// apply executes one non-HOLD signal against the current state.
// Redundant signals (open while open on the same side, close while
// flat) are silent no-ops rather than errors.
func (p *portfolio) apply(ctx context.Context, sig Signal, strat Strategy, bar Bar, history []Bar) {
	if ss, ok := strat.(SpreadStrategy); ok {
		p.applySpread(ctx, sig, ss, bar, history)
		return
	}

	switch sig {
	case SignalBuyLong:
		if p.pos.Side == SideShort {
			// Reversal: two trade records on the same bar.
			p.closeShort(SignalBuyLong, bar, "reverse to long")
		}
		p.openLong(SignalBuyLong, bar)
	case SignalSellShort:
		if p.pos.Side == SideLong {
			p.closeLong(SignalSellShort, bar, "reverse to short")
		}
		p.openShort(SignalSellShort, bar)
	case SignalSellLong:
		if p.pos.Side == SideLong {
			p.closeLong(SignalSellLong, bar, "")
		}
	case SignalBuyShort:
		if p.pos.Side == SideShort {
			p.closeShort(SignalBuyShort, bar, "")
		}
	case SignalBuy:
		if p.pos.Side == SideFlat {
			p.openLong(SignalBuy, bar)
		}
	case SignalSell:
		if p.pos.Side == SideLong {
			p.closeLong(SignalSell, bar, "")
		}
	}
}

// sizeEntry returns the quantity for an underlying entry: FixedQty
// when configured, otherwise floor(cash × PositionPct / price).
func (p *portfolio) sizeEntry(price float64) float64 {
	if p.cfg.FixedQty > 0 {
		return p.cfg.FixedQty
	}
	return math.Floor(p.cash * p.cfg.PositionPct / price)
}

func (p *portfolio) openLong(sig Signal, bar Bar) {
	if p.pos.Side != SideFlat {
		return
	}
	qty := p.sizeEntry(bar.Close)
	if qty <= 0 {
		return
	}
	notional := bar.Close * qty
	fee := notional * p.cfg.BrokerageRate
	p.cash -= notional + fee
	p.brokerage += fee
	p.pos = Position{Side: SideLong, Qty: qty, EntryTime: bar.Time, EntryPrice: bar.Close, EntryFee: fee}
	p.trades = append(p.trades, Trade{
		Date: bar.Time, Action: sig, Price: bar.Close, Qty: qty,
		Value: notional, Brokerage: fee,
	})
}

func (p *portfolio) closeLong(sig Signal, bar Bar, reason string) {
	if p.pos.Side != SideLong {
		return
	}
	notional := bar.Close * p.pos.Qty
	fee := notional * p.cfg.BrokerageRate
	p.cash += notional - fee
	p.brokerage += fee
	pnl := (bar.Close-p.pos.EntryPrice)*p.pos.Qty - p.pos.EntryFee - fee
	pnlPct := pnl / (p.pos.EntryPrice * p.pos.Qty) * 100
	p.trades = append(p.trades, Trade{
		Date: bar.Time, Action: sig, Price: bar.Close, Qty: p.pos.Qty,
		Value: notional, Brokerage: fee, PnL: &pnl, PnLPct: &pnlPct, Reason: reason,
	})
	p.pos = Position{Side: SideFlat}
}

func (p *portfolio) openShort(sig Signal, bar Bar) {
	if p.pos.Side != SideFlat {
		return
	}
	qty := p.sizeEntry(bar.Close)
	if qty <= 0 {
		return
	}
	notional := bar.Close * qty
	fee := notional * p.cfg.BrokerageRate
	p.cash += notional - fee
	p.brokerage += fee
	p.pos = Position{Side: SideShort, Qty: qty, EntryTime: bar.Time, EntryPrice: bar.Close, EntryFee: fee}
	p.trades = append(p.trades, Trade{
		Date: bar.Time, Action: sig, Price: bar.Close, Qty: qty,
		Value: notional, Brokerage: fee,
	})
}

func (p *portfolio) closeShort(sig Signal, bar Bar, reason string) {
	if p.pos.Side != SideShort {
		return
	}
	notional := bar.Close * p.pos.Qty
	fee := notional * p.cfg.BrokerageRate
	p.cash -= notional + fee
	p.brokerage += fee
	pnl := (p.pos.EntryPrice-bar.Close)*p.pos.Qty - p.pos.EntryFee - fee
	pnlPct := pnl / (p.pos.EntryPrice * p.pos.Qty) * 100
	p.trades = append(p.trades, Trade{
		Date: bar.Time, Action: sig, Price: bar.Close, Qty: p.pos.Qty,
		Value: notional, Brokerage: fee, PnL: &pnl, PnLPct: &pnlPct, Reason: reason,
	})
	p.pos = Position{Side: SideFlat}
}

// applySpread handles the option structure lifecycle. Debit
// strategies open on BUY/BUY_LONG and close on SELL/SELL_LONG; credit
// strategies open on SELL_SHORT and close on BUY_SHORT. The Side is
// just a directional label, the actual exposure lives in the legs.
func (p *portfolio) applySpread(ctx context.Context, sig Signal, ss SpreadStrategy, bar Bar, history []Bar) {
	switch sig {
	case SignalBuy, SignalBuyLong:
		p.openSpread(ctx, sig, SideLong, ss, bar, history)
	case SignalSellShort:
		p.openSpread(ctx, sig, SideShort, ss, bar, history)
	case SignalSell, SignalSellLong, SignalBuyShort:
		p.closeSpread(ctx, sig, ss, bar, history, "")
	}
}

func (p *portfolio) openSpread(ctx context.Context, sig Signal, side Side, ss SpreadStrategy, bar Bar, history []Bar) {
	if p.pos.Side != SideFlat {
		return
	}
	vol := ss.VolProxy(history)
	if vol <= 0 {
		p.fault(fmt.Sprintf("%s: no volatility proxy, spread entry skipped", bar.Time.Format("2006-01-02")))
		return
	}
	spread, err := ss.BuildSpread(ctx, bar.Time, bar.Close, vol, ss.HoldDays())
	if err != nil {
		p.fault(fmt.Sprintf("%s: spread entry skipped: %v", bar.Time.Format("2006-01-02"), err))
		return
	}
	spread.EntryDate = bar.Time

	// NetCost is the signed entry cash flow: negative for debit
	// structures, positive for credit. Brokerage tracks gross value.
	fee := math.Abs(spread.NetCost) * p.cfg.BrokerageRate
	p.cash += spread.NetCost - fee
	p.brokerage += fee
	// The legs carry the strategy's own lot size; the config lot is
	// only a fallback for strategies that leave legs unsized.
	qty := float64(p.cfg.LotSize)
	if len(spread.Legs) > 0 && spread.Legs[0].Qty > 0 {
		qty = spread.Legs[0].Qty
	}
	p.pos = Position{
		Side: side, Qty: qty, EntryTime: bar.Time,
		EntryPrice: bar.Close, EntryFee: fee,
		Spread: spread, LastValue: spread.EntryValue(),
	}
	p.trades = append(p.trades, Trade{
		Date: bar.Time, Action: sig, Price: bar.Close, Qty: qty,
		Value: spread.NetCost, Brokerage: fee, Options: spread.Describe(),
	})
}

func (p *portfolio) closeSpread(ctx context.Context, sig Signal, ss SpreadStrategy, bar Bar, history []Bar, reason string) {
	if p.pos.Side == SideFlat || p.pos.Spread == nil {
		return
	}
	spread := p.pos.Spread

	// A fresh revaluation at the close bar; fall back to the last
	// successful mark when premiums are unavailable here. A nil
	// history means the caller already marked this bar.
	value := p.pos.LastValue
	if history != nil {
		if v, err := p.revalue(ctx, ss, bar, history); err == nil {
			value = v
		} else {
			p.fault(fmt.Sprintf("%s: spread exit valued at last mark: %v", bar.Time.Format("2006-01-02"), err))
		}
	}

	fee := math.Abs(value) * p.cfg.BrokerageRate
	p.cash += value - fee
	p.brokerage += fee
	pnl := value + spread.NetCost - p.pos.EntryFee - fee
	basis := math.Abs(spread.NetCost)
	var pnlPct float64
	if basis > 0 {
		pnlPct = pnl / basis * 100
	}
	p.trades = append(p.trades, Trade{
		Date: bar.Time, Action: sig, Price: bar.Close, Qty: p.pos.Qty,
		Value: value, Brokerage: fee, PnL: &pnl, PnLPct: &pnlPct,
		Reason: reason, Options: spread.Describe(),
	})
	p.pos = Position{Side: SideFlat}
}

// revalue marks the open spread at a bar.
func (p *portfolio) revalue(ctx context.Context, ss SpreadStrategy, bar Bar, history []Bar) (float64, error) {
	spread := p.pos.Spread
	daysHeld := int(bar.Time.Sub(p.pos.EntryTime).Hours() / 24)
	daysRemaining := ss.HoldDays() - daysHeld
	if daysRemaining < 1 {
		daysRemaining = 1
	}
	vol := ss.VolProxy(history)
	return ss.PositionValue(ctx, spread.Legs, spread.Expiry, bar.Time, bar.Close, vol, daysRemaining)
}

// markBar runs after the bar's signal: revalue any open spread and
// append the equity sample.
func (p *portfolio) markBar(ctx context.Context, strat Strategy, bar Bar, history []Bar) {
	if p.pos.Spread != nil {
		if ss, ok := strat.(SpreadStrategy); ok {
			if v, err := p.revalue(ctx, ss, bar, history); err == nil {
				p.pos.LastValue = v
			} else {
				p.fault(fmt.Sprintf("%s: premium unavailable, kept last mark: %v",
					bar.Time.Format("2006-01-02"), err))
			}
		}
	}
	p.equity = append(p.equity, EquityPoint{
		Time:   bar.Time.Format("2006-01-02"),
		Equity: p.equityAt(bar.Close),
	})
}

// equityAt is cash plus the open position's mark-to-market value.
func (p *portfolio) equityAt(close float64) float64 {
	switch {
	case p.pos.Spread != nil:
		return p.cash + p.pos.LastValue
	case p.pos.Side == SideLong:
		return p.cash + close*p.pos.Qty
	case p.pos.Side == SideShort:
		return p.cash - close*p.pos.Qty
	default:
		return p.cash
	}
}

// unrealized is the open position's profit relative to entry, net of
// the entry brokerage cash already paid, so FinalEquity matches the
// final equity-curve sample.
func (p *portfolio) unrealized(close float64) float64 {
	switch {
	case p.pos.Spread != nil:
		return p.pos.LastValue + p.pos.Spread.NetCost - p.pos.EntryFee
	case p.pos.Side == SideLong:
		return (close-p.pos.EntryPrice)*p.pos.Qty - p.pos.EntryFee
	case p.pos.Side == SideShort:
		return (p.pos.EntryPrice-close)*p.pos.Qty - p.pos.EntryFee
	default:
		return 0
	}
}

// forceClose liquidates whatever is open at the final bar.
func (p *portfolio) forceClose(ctx context.Context, strat Strategy, last Bar) {
	const reason = "end of backtest"
	if ss, ok := strat.(SpreadStrategy); ok && p.pos.Spread != nil {
		sig := SignalSell
		if p.pos.Side == SideShort {
			sig = SignalBuyShort
		}
		// The last mark already reflects this bar via markBar.
		p.closeSpread(ctx, sig, ss, last, nil, reason)
		if len(p.equity) > 0 {
			p.equity[len(p.equity)-1].Equity = p.cash
		}
		return
	}
	switch p.pos.Side {
	case SideLong:
		p.closeLong(SignalSellLong, last, reason)
	case SideShort:
		p.closeShort(SignalBuyShort, last, reason)
	default:
		return
	}
	if len(p.equity) > 0 {
		p.equity[len(p.equity)-1].Equity = p.cash
	}
}

func (p *portfolio) result(strategyName string) *Result {
	res := &Result{
		Symbol:      p.cfg.Symbol,
		Strategy:    strategyName,
		Trades:      p.trades,
		EquityCurve: p.equity,
		Errors:      p.errs,
	}
	var lastClose float64
	if n := len(p.equity); n > 0 {
		// Equity curve already carries the final mark; unrealized
		// needs the last close for underlying positions.
		lastClose = finalClose(p.pos, p.equity[n-1].Equity, p.cash)
	}
	if p.pos.Side != SideFlat {
		pos := p.pos
		res.OpenPosition = &pos
	}
	res.Metrics = computeMetrics(p.cfg.InitialCash, p.trades, p.equity, p.unrealized(lastClose), p.brokerage)
	return res
}

// finalClose back-solves the last underlying close from the final
// equity sample so unrealized P&L lines up with the curve exactly.
func finalClose(pos Position, finalEquity, cash float64) float64 {
	if pos.Qty <= 0 || pos.Spread != nil {
		return 0
	}
	switch pos.Side {
	case SideLong:
		return (finalEquity - cash) / pos.Qty
	case SideShort:
		return (cash - finalEquity) / pos.Qty
	}
	return 0
}
