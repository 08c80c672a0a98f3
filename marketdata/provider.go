package marketdata

import (
	"context"
	"errors"
	"time"
)

// ErrNoData means the store has no rows for the requested symbol/range.
var ErrNoData = errors.New("marketdata: no data for symbol/range")

// Candle is one daily OHLCV sample in major currency units (rupees).
// The store scales raw paise feed values on read; nothing above this
// package converts units.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PremiumTick is one observed option premium for a contract.
type PremiumTick struct {
	Time    time.Time `json:"time"`
	Premium float64   `json:"premium"`
}

// OptionType CE/PE per NSE convention.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// Provider supplies ordered historical bars and, for options, premium
// series for a concrete contract. Implementations must return rows
// strictly ordered by timestamp.
type Provider interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error)
	ContractSeries(ctx context.Context, strike float64, optType OptionType, expiry, start, end time.Time) ([]PremiumTick, error)
}
