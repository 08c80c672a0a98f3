// Package report renders backtest results for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"niftybt/backtest"
)

// enIN groups digits the Indian way (1,00,000) for rupee amounts.
var enIN = message.NewPrinter(language.Make("en-IN"))

const lineWidth = 78

// Render writes a boxed summary of one run: metrics, the trade log,
// and any isolated per-bar errors.
func Render(w io.Writer, res *backtest.Result, initialCash float64) {
	m := res.Metrics

	rule := "╠" + strings.Repeat("═", lineWidth-2) + "╣"
	thin := "╟" + strings.Repeat("─", lineWidth-2) + "╢"

	fmt.Fprintln(w, "╔"+strings.Repeat("═", lineWidth-2)+"╗")
	row(w, fmt.Sprintf("Backtest  %s / %s", res.Symbol, res.Strategy))
	fmt.Fprintln(w, rule)

	row(w, enIN.Sprintf("Initial capital   ₹%.2f", initialCash))
	row(w, enIN.Sprintf("Final equity      ₹%.2f", m.FinalEquity))
	row(w, enIN.Sprintf("Total P&L         %s₹%.2f%s  (%.2f%%)",
		colorBySign(m.TotalPnL), m.TotalPnL, reset, m.TotalReturnPct))
	if m.UnrealizedPnL != 0 {
		row(w, enIN.Sprintf("Unrealized P&L    %s₹%.2f%s", colorBySign(m.UnrealizedPnL), m.UnrealizedPnL, reset))
	}
	row(w, fmt.Sprintf("Trades            %d  (%d won / %d lost, %.1f%% win rate)",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRatePct))
	row(w, fmt.Sprintf("Max drawdown      %.2f%%", m.MaxDrawdownPct))
	row(w, fmt.Sprintf("Sharpe ratio      %.2f", m.SharpeRatio))
	row(w, enIN.Sprintf("Brokerage paid    ₹%.2f", m.TotalBrokerage))

	if len(res.Trades) > 0 {
		fmt.Fprintln(w, rule)
		row(w, "Trades")
		row(w, "Date        Action      Price        Qty         P&L")
		fmt.Fprintln(w, thin)
		for _, t := range res.Trades {
			pnl := ""
			color := ""
			if t.PnL != nil {
				pnl = enIN.Sprintf("%+.2f (%.1f%%)", *t.PnL, *t.PnLPct)
				color = colorBySign(*t.PnL)
			}
			row(w, fmt.Sprintf("%s  %-10s %9.2f  %9.0f  %s%s%s",
				t.Date.Format("2006-01-02"), t.Action, t.Price, t.Qty, color, pnl, reset))
			if t.Options != "" {
				row(w, "            "+t.Options)
			}
		}
	}

	if pos := res.OpenPosition; pos != nil {
		fmt.Fprintln(w, rule)
		row(w, fmt.Sprintf("Open position     %s since %s", pos.Side, pos.EntryTime.Format("2006-01-02")))
		if pos.Spread != nil {
			row(w, "            "+pos.Spread.Describe())
		}
	}

	if len(res.Errors) > 0 {
		fmt.Fprintln(w, rule)
		row(w, fmt.Sprintf("Warnings          %d bars skipped or degraded", len(res.Errors)))
	}

	fmt.Fprintln(w, "╚"+strings.Repeat("═", lineWidth-2)+"╝")
}

const reset = "\033[0m"

func colorBySign(v float64) string {
	if v > 0 {
		return "\033[32m"
	}
	if v < 0 {
		return "\033[31m"
	}
	return ""
}

// row pads one content line into the box. Width accounting ignores
// ANSI escapes, so colored rows run slightly short of the border.
func row(w io.Writer, content string) {
	pad := lineWidth - 4 - len([]rune(stripANSI(content)))
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintln(w, "║ "+content+strings.Repeat(" ", pad)+" ║")
}

func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case inEsc:
			if r == 'm' {
				inEsc = false
			}
		case r == '\033':
			inEsc = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
