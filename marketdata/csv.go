package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadCSV parses raw feed rows from a CSV stream. Expected columns:
// date,open,high,low,close[,volume] with dates as YYYY-MM-DD and
// prices in paise, exactly as the NSE dump ships them. A header row is
// detected and skipped.
func ReadCSV(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var out []Candle
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line+1, err)
		}
		line++
		if len(rec) < 5 {
			return nil, fmt.Errorf("csv line %d: want at least 5 columns, got %d", line, len(rec))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}

		ts, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(rec[0]), time.Local)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: bad date %q: %w", line, rec[0], err)
		}

		var c Candle
		c.Time = ts
		for i, dst := range []*float64{&c.Open, &c.High, &c.Low, &c.Close} {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: bad price %q: %w", line, rec[i+1], err)
			}
			*dst = v
		}
		if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
			v, err := strconv.ParseInt(strings.TrimSpace(rec[5]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: bad volume %q: %w", line, rec[5], err)
			}
			c.Volume = v
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty csv", ErrNoData)
	}
	return out, nil
}

// ImportCSV loads one symbol's candle file into the store.
func ImportCSV(ctx context.Context, store *Store, symbol, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	candles, err := ReadCSV(f)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := store.InsertCandles(ctx, symbol, candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}
