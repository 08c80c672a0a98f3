package options

import (
	"fmt"
	"strings"
	"time"

	"niftybt/marketdata"
)

// LegSide is the direction of one leg's cash flow at entry.
type LegSide string

const (
	LegBuy  LegSide = "BUY"
	LegSell LegSide = "SELL"
)

// Leg is one option contract within a spread. Qty already includes the
// lot size (NIFTY standard lot = 75).
type Leg struct {
	Side         LegSide               `json:"side"`
	Strike       float64               `json:"strike"`
	Type         marketdata.OptionType `json:"type"`
	Qty          float64               `json:"qty"`
	EntryPremium float64               `json:"entry_premium"`
}

// sign is +1 for legs we own, -1 for legs we are short.
func (l Leg) sign() float64 {
	if l.Side == LegSell {
		return -1
	}
	return 1
}

// Spread is a combination of option legs opened and closed atomically.
type Spread struct {
	Legs      []Leg     `json:"legs"`
	Expiry    time.Time `json:"expiry"`
	EntryDate time.Time `json:"entry_date"`

	// NetCost is the signed cash flow at entry: negative for debit
	// spreads (premium paid), positive for credit spreads (premium
	// received). Always -EntryValue().
	NetCost   float64 `json:"net_cost"`
	MaxProfit float64 `json:"max_profit"`
	MaxLoss   float64 `json:"max_loss"`
}

// NewSpread derives NetCost from the legs' entry premiums. MaxProfit
// and MaxLoss are strategy-specific and set by the builder.
func NewSpread(legs []Leg, expiry time.Time) *Spread {
	s := &Spread{Legs: legs, Expiry: expiry}
	s.NetCost = -s.EntryValue()
	return s
}

// EntryValue is the signed sum of entry premium × quantity across legs:
// positive for net-long (debit) structures, negative for net-short.
func (s *Spread) EntryValue() float64 {
	total := 0.0
	for _, l := range s.Legs {
		total += l.sign() * l.EntryPremium * l.Qty
	}
	return total
}

// Value recomputes the signed spread value with each leg priced by
// price(leg). Unrealized P&L at any bar is Value + NetCost.
func (s *Spread) Value(price func(Leg) float64) float64 {
	total := 0.0
	for _, l := range s.Legs {
		total += l.sign() * price(l) * l.Qty
	}
	return total
}

// Describe renders the legs for trade-log display,
// e.g. "BUY PE 23500 x75 @ 182.50 | SELL PE 23400 x75 @ 141.20".
func (s *Spread) Describe() string {
	parts := make([]string, 0, len(s.Legs))
	for _, l := range s.Legs {
		parts = append(parts, fmt.Sprintf("%s %s %.0f x%.0f @ %.2f",
			l.Side, l.Type, l.Strike, l.Qty, l.EntryPremium))
	}
	return strings.Join(parts, " | ")
}

// RoundToStrike rounds a rupee price to the nearest strike on the
// exchange's strike grid.
func RoundToStrike(price, step float64) float64 {
	if step <= 0 {
		return price
	}
	n := int64(price/step + 0.5)
	return float64(n) * step
}
