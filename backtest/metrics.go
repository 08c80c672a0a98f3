package backtest

import "math"

// tradingDaysPerYear annualizes the Sharpe ratio from daily returns.
const tradingDaysPerYear = 252

// computeMetrics summarizes a finished run. Only closing trades carry
// P&L, so win/loss counts and win rate consider those alone.
// Final equity is the verifiable ledger identity
// initial + realized + unrealized, not a separately tracked number.
func computeMetrics(initialCash float64, trades []Trade, equity []EquityPoint, unrealized, brokerage float64) Metrics {
	m := Metrics{TotalBrokerage: brokerage, UnrealizedPnL: unrealized}

	closes := 0
	for _, t := range trades {
		if t.PnL == nil {
			continue
		}
		closes++
		m.TotalPnL += *t.PnL
		if *t.PnL > 0 {
			m.WinningTrades++
		} else {
			m.LosingTrades++
		}
	}
	m.TotalTrades = closes
	if closes > 0 {
		m.WinRatePct = float64(m.WinningTrades) / float64(closes) * 100
	}

	m.FinalEquity = initialCash + m.TotalPnL + unrealized
	m.TotalReturnPct = (m.FinalEquity - initialCash) / initialCash * 100
	m.MaxDrawdownPct = maxDrawdown(equity)
	m.SharpeRatio = sharpe(equity)
	return m
}

// maxDrawdown is the largest peak-to-trough equity decline, percent.
func maxDrawdown(equity []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Equity) / peak * 100
		if dd > worst {
			worst = dd
		}
	}
	return worst
}

// sharpe annualizes mean/stddev of per-bar equity returns. Zero when
// there are fewer than two samples or the curve never moves.
func sharpe(equity []EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		rets = append(rets, (equity[i].Equity-prev)/prev)
	}
	if len(rets) < 2 {
		return 0
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets))
	sd := math.Sqrt(variance)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(tradingDaysPerYear)
}
