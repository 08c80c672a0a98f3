package marketdata

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Option contract symbols follow the upstream NSE F&O feed naming:
// NSEFO:#NIFTY<YYYYMMDD><CE|PE><strike in paise>
// e.g. NSEFO:#NIFTY20241226CE2350000 is the 23500 CE expiring 2024-12-26.

const optionSymbolPrefix = "NSEFO:#NIFTY"

// OptionSymbol builds the feed symbol for a contract. Strike is in rupees.
func OptionSymbol(strike float64, optType OptionType, expiry time.Time) string {
	strikePaise := int64(strike * 100)
	return fmt.Sprintf("%s%s%s%d", optionSymbolPrefix, expiry.Format("20060102"), optType, strikePaise)
}

// ParseOptionSymbol decodes a feed symbol back into contract terms.
// The returned strike is in rupees.
func ParseOptionSymbol(symbol string) (strike float64, optType OptionType, expiry time.Time, err error) {
	rest, ok := strings.CutPrefix(symbol, optionSymbolPrefix)
	if !ok || len(rest) < 8+2+1 {
		return 0, "", time.Time{}, fmt.Errorf("not an option symbol: %s", symbol)
	}

	expiry, err = time.ParseInLocation("20060102", rest[:8], time.Local)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("bad expiry in symbol %s: %w", symbol, err)
	}

	rest = rest[8:]
	switch {
	case strings.HasPrefix(rest, string(OptionCall)):
		optType = OptionCall
	case strings.HasPrefix(rest, string(OptionPut)):
		optType = OptionPut
	default:
		return 0, "", time.Time{}, fmt.Errorf("bad option type in symbol %s", symbol)
	}

	strikePaise, err := strconv.ParseInt(rest[2:], 10, 64)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("bad strike in symbol %s: %w", symbol, err)
	}
	return float64(strikePaise) / 100.0, optType, expiry, nil
}
