package indicator

import "math"

// SMA calculates the simple moving average over the last period values.
// Returns 0 if there is not enough data.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// RSI computes the Wilder Relative Strength Index over the last period
// changes, using the smoothed-average recurrence. Returns 0 if there is
// not enough data.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}

	deltas := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		deltas[i-1] = values[i] - values[i-1]
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 0; i < period; i++ {
		if deltas[i] > 0 {
			avgGain += deltas[i]
		} else {
			avgLoss -= deltas[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(deltas); i++ {
		gain, loss := 0.0, 0.0
		if deltas[i] > 0 {
			gain = deltas[i]
		} else {
			loss = -deltas[i]
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ATR computes the average true range over the last period bars.
// The three slices must have equal length. Returns 0 if there is not
// enough data (period+1 bars are needed for the previous close).
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0
	}

	sum := 0.0
	for i := n - period; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(hl, math.Max(hc, lc))
	}
	return sum / float64(period)
}

// StdDev computes the population standard deviation of the last period
// values. Returns 0 if there is not enough data.
func StdDev(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	mean := SMA(values, period)
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		d := values[i] - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(period))
}

// Momentum returns the fractional price change over the last lookback
// bars: (last − past) / past. Returns 0 if there is not enough data.
func Momentum(values []float64, lookback int) float64 {
	if lookback <= 0 || len(values) < lookback+1 {
		return 0
	}
	past := values[len(values)-1-lookback]
	if past == 0 {
		return 0
	}
	return (values[len(values)-1] - past) / past
}
