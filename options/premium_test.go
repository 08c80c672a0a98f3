package options

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niftybt/marketdata"
)

func TestEstimateExpiredOrUnpriceable(t *testing.T) {
	assert.Equal(t, 0.0, Estimate(23500, 23500, 150, marketdata.OptionCall, 0), "expired")
	assert.Equal(t, 0.0, Estimate(23500, 23500, 150, marketdata.OptionCall, -3))
	assert.Equal(t, 0.0, Estimate(23500, 23500, 0, marketdata.OptionPut, 7), "no volatility proxy")
	assert.Equal(t, 0.0, Estimate(0, 23500, 150, marketdata.OptionPut, 7), "no spot")
}

func TestEstimateATM(t *testing.T) {
	// ATM put, 7 DTE: moneyness is zero so the leg is priced as ITM
	// boundary with half time value.
	spot, strike, atr := 23500.0, 23500.0, 150.0
	premium := Estimate(spot, strike, atr, marketdata.OptionPut, 7)

	iv := (atr / spot) * math.Sqrt(252.0/7.0)
	if iv < 0.10 {
		iv = 0.10
	}
	want := spot * iv * math.Sqrt(7.0/365.0) * 0.5
	assert.InDelta(t, want, premium, 1e-9)
	assert.Greater(t, premium, 0.0)
	assert.Less(t, premium, spot)
}

func TestEstimateOTMDecaysWithMoneyness(t *testing.T) {
	spot, atr := 23500.0, 150.0
	near := Estimate(spot, 24000, atr, marketdata.OptionCall, 7)
	far := Estimate(spot, 25500, atr, marketdata.OptionCall, 7)
	require.Greater(t, near, 0.0)
	assert.Greater(t, near, far, "farther OTM strikes are cheaper")
}

func TestEstimateITMCarriesIntrinsic(t *testing.T) {
	spot, atr := 23500.0, 150.0
	put := Estimate(spot, 24000, atr, marketdata.OptionPut, 7)
	assert.Greater(t, put, 500.0, "ITM put is worth at least its intrinsic value")

	call := Estimate(spot, 23000, atr, marketdata.OptionCall, 7)
	assert.Greater(t, call, 500.0)
}

func TestEstimateIVClamp(t *testing.T) {
	spot := 23500.0
	// Absurd ATR would imply IV far above 1.0; the clamp caps it.
	extreme := Estimate(spot, spot, 50000, marketdata.OptionPut, 7)
	capped := spot * 1.0 * math.Sqrt(7.0/365.0) * 0.5
	assert.InDelta(t, capped, extreme, 1e-9)
}

// stubProvider serves canned premium ticks for one contract.
type stubProvider struct {
	ticks []marketdata.PremiumTick
	err   error
}

func (s *stubProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]marketdata.Candle, error) {
	return nil, marketdata.ErrNoData
}

func (s *stubProvider) ContractSeries(ctx context.Context, strike float64, optType marketdata.OptionType, expiry, start, end time.Time) ([]marketdata.PremiumTick, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ticks, nil
}

func TestSourcePrefersHistoricalQuote(t *testing.T) {
	at := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	expiry := at.AddDate(0, 0, 7)
	src := &Source{Provider: &stubProvider{ticks: []marketdata.PremiumTick{
		{Time: at.Add(-20 * time.Hour), Premium: 210},
		{Time: at.Add(2 * time.Hour), Premium: 180},
	}}}

	got, err := src.Premium(context.Background(), 23500, marketdata.OptionPut, expiry, at, 23500, 150)
	require.NoError(t, err)
	assert.Equal(t, 180.0, got, "nearest tick wins")
}

func TestSourceFallsBackToEstimate(t *testing.T) {
	at := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	expiry := at.AddDate(0, 0, 7)
	src := &Source{Provider: &stubProvider{err: marketdata.ErrNoData}}

	got, err := src.Premium(context.Background(), 23500, marketdata.OptionPut, expiry, at, 23500, 150)
	require.NoError(t, err)
	want := Estimate(23500, 23500, 150, marketdata.OptionPut, 7)
	assert.InDelta(t, want, got, 1e-9)
}

func TestSourceUnavailable(t *testing.T) {
	at := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	expiry := at.AddDate(0, 0, 7)
	src := &Source{} // no provider, and no volatility proxy below

	_, err := src.Premium(context.Background(), 23500, marketdata.OptionPut, expiry, at, 23500, 0)
	assert.ErrorIs(t, err, ErrPremiumUnavailable)
}

func TestSourceExpiredContractIsWorthless(t *testing.T) {
	at := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	expiry := at.AddDate(0, 0, -1)
	src := &Source{}

	got, err := src.Premium(context.Background(), 23500, marketdata.OptionPut, expiry, at, 23500, 150)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}
