// Package options models option contracts: theoretical premium
// estimation, real-data premium lookup, and multi-leg spread valuation.
//
// Unit discipline: every price in this package — spot, strike,
// volatility proxy, premium — is in rupees. Mixing paise into any of
// these collapses moneyness to near zero and silently prices deep OTM
// legs at nothing, so the marketdata layer converts exactly once.
package options

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"niftybt/marketdata"
)

// ErrPremiumUnavailable means neither a historical quote nor a
// theoretical estimate could be produced for a contract.
var ErrPremiumUnavailable = errors.New("options: premium unavailable")

const (
	tradingDaysPerYear = 252

	// Annualized IV proxy bounds. Noisy ATR inputs on short expiries
	// produce degenerate vols without the clamp.
	minIV = 0.10
	maxIV = 1.00
)

// Estimate produces a theoretical option premium from an ATR-style
// volatility proxy. A simplified Black-Scholes shape: full intrinsic
// value for ITM, extrinsic time value decaying exponentially with
// moneyness for OTM.
//
// Returns 0 when the contract is expired or the volatility proxy is
// absent — "do not trade", not an error.
func Estimate(spot, strike, volProxy float64, optType marketdata.OptionType, daysToExpiry int) float64 {
	if daysToExpiry <= 0 || volProxy <= 0 || spot <= 0 {
		return 0
	}

	iv := (volProxy / spot) * math.Sqrt(tradingDaysPerYear/float64(daysToExpiry))
	iv = math.Max(minIV, math.Min(maxIV, iv))

	timeFactor := math.Sqrt(float64(daysToExpiry) / 365.0)

	// Signed distance from spot, positive when OTM.
	var moneyness, intrinsic float64
	if optType == marketdata.OptionCall {
		moneyness = (strike - spot) / spot
		intrinsic = spot - strike
	} else {
		moneyness = (spot - strike) / spot
		intrinsic = strike - spot
	}

	var extrinsic float64
	if moneyness > 0 { // OTM
		intrinsic = 0
		extrinsic = spot * iv * timeFactor * math.Exp(-moneyness*2)
	} else { // ITM
		extrinsic = spot * iv * timeFactor * 0.5
	}

	return math.Max(0, intrinsic+extrinsic)
}

// Source resolves a contract premium for a given date: a real quote
// from the provider wins when one exists within the tolerance window;
// otherwise the theoretical estimate is used. A nil provider always
// falls through to the estimate.
type Source struct {
	Provider marketdata.Provider

	// Window is the lookup tolerance around the queried date.
	// Zero means the default of ±1 day.
	Window time.Duration
}

const defaultWindow = 24 * time.Hour

// Premium returns the contract premium at the given date, in rupees.
// ErrPremiumUnavailable when no quote exists and the theoretical model
// cannot price the contract either.
func (s *Source) Premium(ctx context.Context, strike float64, optType marketdata.OptionType, expiry, at time.Time, spot, volProxy float64) (float64, error) {
	if p, ok := s.lookup(ctx, strike, optType, expiry, at); ok {
		return p, nil
	}

	daysToExpiry := int(expiry.Sub(at).Hours() / 24)
	est := Estimate(spot, strike, volProxy, optType, daysToExpiry)
	if est <= 0 && daysToExpiry > 0 {
		// Not expired, yet unpriceable: no quote and no volatility proxy.
		return 0, fmt.Errorf("%w: %s strike %.0f @ %s", ErrPremiumUnavailable,
			optType, strike, at.Format("2006-01-02"))
	}
	return est, nil
}

func (s *Source) lookup(ctx context.Context, strike float64, optType marketdata.OptionType, expiry, at time.Time) (float64, bool) {
	if s.Provider == nil {
		return 0, false
	}
	window := s.Window
	if window <= 0 {
		window = defaultWindow
	}

	ticks, err := s.Provider.ContractSeries(ctx, strike, optType, expiry, at.Add(-window), at.Add(window))
	if err != nil || len(ticks) == 0 {
		return 0, false
	}

	// Nearest-timestamp match within the window.
	best := ticks[0]
	bestDiff := absDuration(best.Time.Sub(at))
	for _, t := range ticks[1:] {
		if d := absDuration(t.Time.Sub(at)); d < bestDiff {
			best, bestDiff = t, d
		}
	}
	if best.Premium <= 0 {
		return 0, false
	}
	return best.Premium, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
