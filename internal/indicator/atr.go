package indicator

import (
	"fmt"
	"math"
)

// ATR smoothing methods.
const (
	SmoothingSMA    = "sma"
	SmoothingWilder = "wilder"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// Bar 0 has no previous close and uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		tr := high[i] - low[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
			tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR averages the true range over period bars using the named smoothing:
// "sma" (rolling mean) or "wilder" (SMMA). NaN before period-1.
func ATR(high, low, close []float64, period int, smoothing string) ([]float64, error) {
	tr := TrueRange(high, low, close)
	switch smoothing {
	case "", SmoothingSMA:
		return SMASeries(tr, period), nil
	case SmoothingWilder:
		return SMMASeries(tr, period), nil
	default:
		return nil, fmt.Errorf("indicator: unknown ATR smoothing %q", smoothing)
	}
}
