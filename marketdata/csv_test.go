package marketdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVWithHeader(t *testing.T) {
	in := `date,open,high,low,close,volume
2024-01-02,2350000,2362500,2340000,2360000,1200
2024-01-03,2360000,2375000,2355000,2371250,900
`
	candles, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, candles, 2)

	// Raw feed values pass through untouched; the store scales on read.
	assert.Equal(t, 2350000.0, candles[0].Open)
	assert.Equal(t, 2360000.0, candles[0].Close)
	assert.Equal(t, int64(1200), candles[0].Volume)
	assert.Equal(t, "2024-01-03", candles[1].Time.Format("2006-01-02"))
}

func TestReadCSVWithoutHeaderOrVolume(t *testing.T) {
	in := "2024-01-02,2350000,2362500,2340000,2360000\n"
	candles, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(0), candles[0].Volume)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoData)

	_, err = ReadCSV(strings.NewReader("date,open,high,low,close\n"))
	assert.ErrorIs(t, err, ErrNoData, "header only")

	_, err = ReadCSV(strings.NewReader("2024-01-02,2350000,2362500\n"))
	assert.Error(t, err, "too few columns")

	_, err = ReadCSV(strings.NewReader("02/01/2024,2350000,2362500,2340000,2360000\n"))
	assert.Error(t, err, "bad date format")

	_, err = ReadCSV(strings.NewReader("2024-01-02,abc,2362500,2340000,2360000\n"))
	assert.Error(t, err, "bad price")

	_, err = ReadCSV(strings.NewReader("2024-01-02,2350000,2362500,2340000,2360000,xyz\n"))
	assert.Error(t, err, "bad volume")
}
