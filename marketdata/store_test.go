package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreBarsScalesPaise(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	raw := []Candle{
		{Time: day(2024, 1, 2), Open: 2350000, High: 2362500, Low: 2340000, Close: 2360000, Volume: 1200},
		{Time: day(2024, 1, 3), Open: 2360000, High: 2375000, Low: 2355000, Close: 2371250, Volume: 900},
	}
	require.NoError(t, store.InsertCandles(ctx, "NSE:NIFTY", raw))

	bars, err := store.Bars(ctx, "NSE:NIFTY", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, 23500.0, bars[0].Open)
	assert.Equal(t, 23625.0, bars[0].High)
	assert.Equal(t, 23400.0, bars[0].Low)
	assert.Equal(t, 23600.0, bars[0].Close)
	assert.Equal(t, int64(1200), bars[0].Volume)
	assert.Equal(t, 23712.5, bars[1].Close)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
}

func TestStoreBarsRangeFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var raw []Candle
	for i := 0; i < 5; i++ {
		raw = append(raw, Candle{Time: day(2024, 1, 2+i), Close: 2350000})
	}
	require.NoError(t, store.InsertCandles(ctx, "NSE:NIFTY", raw))

	bars, err := store.Bars(ctx, "NSE:NIFTY", day(2024, 1, 3), day(2024, 1, 5))
	require.NoError(t, err)
	assert.Len(t, bars, 3, "range bounds are inclusive")
}

func TestStoreBarsNoData(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Bars(context.Background(), "NSE:UNKNOWN", day(2024, 1, 1), day(2024, 1, 31))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestStoreInsertReplacesSameTimestamp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertCandles(ctx, "NSE:NIFTY", []Candle{{Time: day(2024, 1, 2), Close: 2350000}}))
	require.NoError(t, store.InsertCandles(ctx, "NSE:NIFTY", []Candle{{Time: day(2024, 1, 2), Close: 2400000}}))

	bars, err := store.Bars(ctx, "NSE:NIFTY", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 24000.0, bars[0].Close)
}

func TestStoreContractSeries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	expiry := day(2024, 12, 26)
	symbol := OptionSymbol(23500, OptionCall, expiry)
	require.NoError(t, store.InsertCandles(ctx, symbol, []Candle{
		{Time: day(2024, 12, 20), Close: 18050}, // 180.50 rupees
		{Time: day(2024, 12, 23), Close: 14220},
	}))

	ticks, err := store.ContractSeries(ctx, 23500, OptionCall, expiry, day(2024, 12, 19), day(2024, 12, 24))
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, 180.5, ticks[0].Premium)
	assert.Equal(t, 142.2, ticks[1].Premium)

	_, err = store.ContractSeries(ctx, 24000, OptionCall, expiry, day(2024, 12, 19), day(2024, 12, 24))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestOptionSymbolRoundTrip(t *testing.T) {
	expiry := day(2024, 12, 26)
	sym := OptionSymbol(23500, OptionCall, expiry)
	assert.Equal(t, "NSEFO:#NIFTY20241226CE2350000", sym)

	strike, optType, parsed, err := ParseOptionSymbol(sym)
	require.NoError(t, err)
	assert.Equal(t, 23500.0, strike)
	assert.Equal(t, OptionCall, optType)
	assert.True(t, parsed.Equal(expiry))

	strike, optType, _, err = ParseOptionSymbol("NSEFO:#NIFTY20250109PE2232500")
	require.NoError(t, err)
	assert.Equal(t, 22325.0, strike)
	assert.Equal(t, OptionPut, optType)
}

func TestParseOptionSymbolRejectsGarbage(t *testing.T) {
	for _, sym := range []string{
		"NSE:NIFTY",
		"NSEFO:#NIFTY2024",
		"NSEFO:#NIFTY20241226XX2350000",
		"NSEFO:#NIFTY20241226CEnotanumber",
	} {
		_, _, _, err := ParseOptionSymbol(sym)
		assert.Error(t, err, sym)
	}
}
