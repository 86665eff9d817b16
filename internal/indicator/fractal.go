package indicator

// Fractals flags strict five-bar extremes. A high fractal at i needs
// high[i] above the two highs on each side; a low fractal is the mirror on
// lows. The first two and last two bars are never flagged.
func Fractals(high, low []float64) (up, down []bool) {
	n := len(high)
	up = make([]bool, n)
	down = make([]bool, n)
	for i := 2; i < n-2; i++ {
		h := high[i]
		up[i] = h > high[i-2] && h > high[i-1] && h > high[i+1] && h > high[i+2]
		l := low[i]
		down[i] = l < low[i-2] && l < low[i-1] && l < low[i+1] && l < low[i+2]
	}
	return up, down
}

// LastFractal returns the index of the most recent true flag, or -1.
func LastFractal(flags []bool) int {
	for i := len(flags) - 1; i >= 0; i-- {
		if flags[i] {
			return i
		}
	}
	return -1
}
