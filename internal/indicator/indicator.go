// Package indicator computes technical indicator series over candle windows.
//
// Streaming indicators (EMA, SMMA, SMA) implement Streamer and are fed one
// value at a time. The series helpers run the same streamers across a whole
// window, so a full recomputation and an incremental feed agree value for
// value. Undefined positions in a series are NaN.
package indicator

import "math"

// Streamer is the interface for incremental indicators.
type Streamer interface {
	// Name returns the indicator name (e.g., "EMA", "SMMA").
	Name() string

	// Update feeds the next value.
	Update(v float64)

	// Value returns the current value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if v were fed next,
	// WITHOUT mutating internal state.
	Peek(v float64) float64
}

// Defined reports whether v holds a computed value.
func Defined(v float64) bool { return !math.IsNaN(v) }

// Last returns the final element of s, or NaN for an empty series.
func Last(s []float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// At returns s[i] when i is in range, NaN otherwise. Negative i counts
// from the end (-1 is the last element).
func At(s []float64, i int) float64 {
	if i < 0 {
		i += len(s)
	}
	if i < 0 || i >= len(s) {
		return math.NaN()
	}
	return s[i]
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Stream runs s over values and returns the per-position output. Leading
// NaN inputs are passed through without feeding the streamer, which lets
// series be chained (e.g. smoothing a raw oscillator that starts late).
func Stream(s Streamer, values []float64) []float64 {
	out := nanSeries(len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		s.Update(v)
		if s.Ready() {
			out[i] = s.Value()
		}
	}
	return out
}
