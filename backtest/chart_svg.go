package backtest

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
)

type SVGChartOptions struct {
	Width  int
	Height int
}

func (o SVGChartOptions) withDefaults() SVGChartOptions {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 420
	}
	return o
}

// RenderEquitySVG draws the run's mark-to-market equity curve with the
// initial-cash reference line and one marker per closing trade,
// colored by P&L sign.
func RenderEquitySVG(res *Result, initialCash float64, opt SVGChartOptions) ([]byte, error) {
	opt = opt.withDefaults()
	curve := res.EquityCurve
	if len(curve) < 2 {
		return nil, fmt.Errorf("not enough equity points: %d", len(curve))
	}

	minE := math.Inf(1)
	maxE := math.Inf(-1)
	for _, p := range curve {
		if p.Equity < minE {
			minE = p.Equity
		}
		if p.Equity > maxE {
			maxE = p.Equity
		}
	}
	if initialCash < minE {
		minE = initialCash
	}
	if initialCash > maxE {
		maxE = initialCash
	}
	if math.IsInf(minE, 0) || math.IsInf(maxE, 0) {
		return nil, fmt.Errorf("invalid equity range")
	}
	pad := (maxE - minE) * 0.05
	if pad <= 0 {
		pad = math.Abs(minE) * 0.02
	}
	if pad <= 0 {
		pad = 1
	}
	minE -= pad
	maxE += pad

	// Layout
	w := float64(opt.Width)
	h := float64(opt.Height)
	mLeft := 86.0
	mRight := 20.0
	mTop := 24.0
	mBottom := 40.0
	plotW := w - mLeft - mRight
	plotH := h - mTop - mBottom
	if plotW <= 10 || plotH <= 10 {
		return nil, fmt.Errorf("invalid chart size")
	}

	equityToY := func(e float64) float64 {
		r := (e - minE) / (maxE - minE)
		r = math.Max(0, math.Min(1, r))
		return mTop + (1.0-r)*plotH
	}
	n := float64(len(curve))
	xAt := func(i int) float64 {
		return mLeft + (float64(i)+0.5)*(plotW/n)
	}

	bg := "#0b1220"
	grid := "rgba(255,255,255,0.08)"
	line := "#38bdf8"
	win := "#22c55e"
	loss := "#ef4444"
	txt := "rgba(255,255,255,0.85)"

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + strconv.Itoa(opt.Width) + `" height="` + strconv.Itoa(opt.Height) + `" viewBox="0 0 ` + strconv.Itoa(opt.Width) + ` ` + strconv.Itoa(opt.Height) + `">` + "\n")
	buf.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + bg + `"/>` + "\n")

	// Header
	firstD := curve[0].Time
	lastD := curve[len(curve)-1].Time
	title := strings.TrimSpace(res.Symbol)
	if title == "" {
		title = "UNKNOWN"
	}
	if res.Strategy != "" {
		title += " / " + res.Strategy
	}
	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="16" fill="` + txt + `" font-size="14" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">` +
		html.EscapeString(title) + `  ` + html.EscapeString(firstD) + ` ~ ` + html.EscapeString(lastD) + `</text>` + "\n")

	// Grid: equity lines (5)
	for k := 0; k <= 5; k++ {
		y := mTop + (float64(k)/5.0)*plotH
		buf.WriteString(`<line x1="` + fmtFloat(mLeft) + `" y1="` + fmtFloat(y) + `" x2="` + fmtFloat(mLeft+plotW) + `" y2="` + fmtFloat(y) + `" stroke="` + grid + `" stroke-width="1"/>` + "\n")
		e := maxE - (float64(k)/5.0)*(maxE-minE)
		buf.WriteString(`<text x="6" y="` + fmtFloat(y+4) + `" fill="` + txt + `" font-size="12" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">` +
			html.EscapeString(fmtAmount(e)) + `</text>` + "\n")
	}

	// Initial cash reference
	y0 := equityToY(initialCash)
	buf.WriteString(`<line x1="` + fmtFloat(mLeft) + `" y1="` + fmtFloat(y0) + `" x2="` + fmtFloat(mLeft+plotW) + `" y2="` + fmtFloat(y0) + `" stroke="rgba(255,255,255,0.45)" stroke-width="1.2" stroke-dasharray="6 6"/>` + "\n")

	// Equity polyline
	var path strings.Builder
	for i, p := range curve {
		if i == 0 {
			path.WriteString("M")
		} else {
			path.WriteString(" L")
		}
		path.WriteString(fmtFloat(xAt(i)) + " " + fmtFloat(equityToY(p.Equity)))
	}
	buf.WriteString(`<path d="` + path.String() + `" fill="none" stroke="` + line + `" stroke-width="1.6"/>` + "\n")

	// Closing trade markers, located by date
	idxByDate := make(map[string]int, len(curve))
	for i, p := range curve {
		idxByDate[p.Time] = i
	}
	for _, t := range res.Trades {
		if t.PnL == nil {
			continue
		}
		i, ok := idxByDate[t.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		col := win
		if *t.PnL <= 0 {
			col = loss
		}
		buf.WriteString(`<circle cx="` + fmtFloat(xAt(i)) + `" cy="` + fmtFloat(equityToY(curve[i].Equity)) + `" r="3.5" fill="` + col + `"/>` + "\n")
	}

	// Footer dates
	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="` + fmtFloat(mTop+plotH+mBottom-12) + `" fill="` + txt + `" font-size="12" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">` +
		html.EscapeString(firstD) + `</text>` + "\n")
	buf.WriteString(`<text x="` + fmtFloat(mLeft+plotW-70) + `" y="` + fmtFloat(mTop+plotH+mBottom-12) + `" fill="` + txt + `" font-size="12" font-family="ui-monospace, Menlo, Monaco, Consolas, monospace">` +
		html.EscapeString(lastD) + `</text>` + "\n")

	buf.WriteString(`</svg>` + "\n")
	return buf.Bytes(), nil
}

func fmtFloat(x float64) string {
	// stable compact formatting for SVG attributes
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtAmount(a float64) string {
	// keep axis labels readable
	if math.Abs(a) >= 1000 {
		return strconv.FormatFloat(a, 'f', 0, 64)
	}
	return strconv.FormatFloat(a, 'f', 2, 64)
}
