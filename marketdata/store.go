package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Provider = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol TEXT NOT NULL,
	ts     INTEGER NOT NULL,
	open   REAL NOT NULL,
	high   REAL NOT NULL,
	low    REAL NOT NULL,
	close  REAL NOT NULL,
	volume INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, ts)
);
CREATE INDEX IF NOT EXISTS idx_candles_symbol_ts ON candles(symbol, ts);
`

// Store is a SQLite-backed Provider. Rows hold raw feed values: the NSE
// feed quotes both index levels and option premiums in paise, so the
// store divides by priceScale exactly once on every read. Everything
// above this boundary works in rupees.
type Store struct {
	db         *sql.DB
	priceScale float64
}

// OpenStore opens (or creates) the candle database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open candle db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create candle schema: %w", err)
	}
	return &Store{db: db, priceScale: 100}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Bars returns candles for symbol in [start, end], ordered by timestamp,
// scaled to rupees. ErrNoData if the range is empty.
func (s *Store) Bars(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM candles
		 WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts`,
		symbol, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query candles %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []Candle
	for rows.Next() {
		var ts int64
		var c Candle
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle %s: %w", symbol, err)
		}
		c.Time = time.Unix(ts, 0).In(time.Local)
		c.Open /= s.priceScale
		c.High /= s.priceScale
		c.Low /= s.priceScale
		c.Close /= s.priceScale
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, symbol,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return out, nil
}

// ContractSeries returns the close-premium series for one option contract,
// scaled to rupees. A miss returns ErrNoData; callers fall back to the
// theoretical premium model.
func (s *Store) ContractSeries(ctx context.Context, strike float64, optType OptionType, expiry, start, end time.Time) ([]PremiumTick, error) {
	symbol := OptionSymbol(strike, optType, expiry)
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, close FROM candles
		 WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts`,
		symbol, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query contract %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []PremiumTick
	for rows.Next() {
		var ts int64
		var p PremiumTick
		if err := rows.Scan(&ts, &p.Premium); err != nil {
			return nil, fmt.Errorf("scan contract %s: %w", symbol, err)
		}
		p.Time = time.Unix(ts, 0).In(time.Local)
		p.Premium /= s.priceScale
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return out, nil
}

// InsertCandles writes raw feed rows (paise) for a symbol. Existing
// rows at the same timestamp are replaced. Used by the seed CLI and tests.
func (s *Store) InsertCandles(ctx context.Context, symbol string, candles []Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO candles (symbol, ts, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, c.Time.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert candle %s@%s: %w", symbol, c.Time.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}
