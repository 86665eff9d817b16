package indicator

import (
	"math"
	"sort"
)

// Shift moves a series forward by n bars: out[i] = values[i-n].
// The first n positions are NaN. n <= 0 returns a copy.
func Shift(values []float64, n int) []float64 {
	out := nanSeries(len(values))
	if n <= 0 {
		copy(out, values)
		return out
	}
	for i := n; i < len(values); i++ {
		out[i] = values[i-n]
	}
	return out
}

// RollingMax is the maximum over the trailing window, defined once
// minPeriods non-NaN values are present in the window.
func RollingMax(values []float64, window, minPeriods int) []float64 {
	return rolling(values, window, minPeriods, func(w []float64) float64 {
		m := math.Inf(-1)
		for _, v := range w {
			if v > m {
				m = v
			}
		}
		return m
	})
}

// RollingMin is the minimum over the trailing window.
func RollingMin(values []float64, window, minPeriods int) []float64 {
	return rolling(values, window, minPeriods, func(w []float64) float64 {
		m := math.Inf(1)
		for _, v := range w {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// RollingMean is the arithmetic mean over the trailing window.
func RollingMean(values []float64, window, minPeriods int) []float64 {
	return rolling(values, window, minPeriods, func(w []float64) float64 {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingMedian is the median over the trailing window.
func RollingMedian(values []float64, window, minPeriods int) []float64 {
	return rolling(values, window, minPeriods, median)
}

func median(w []float64) float64 {
	s := append([]float64(nil), w...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// rolling applies fn to the non-NaN values of each trailing window.
func rolling(values []float64, window, minPeriods int, fn func([]float64) float64) []float64 {
	if window < 1 {
		window = 1
	}
	if minPeriods < 1 {
		minPeriods = 1
	}
	out := nanSeries(len(values))
	buf := make([]float64, 0, window)
	for i := range values {
		buf = buf[:0]
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		for _, v := range values[lo : i+1] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) >= minPeriods {
			out[i] = fn(buf)
		}
	}
	return out
}
