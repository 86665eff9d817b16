package indicator

import (
	"math"

	"fxscanner/internal/model"
)

// HeikinAshi holds the derived candle series.
type HeikinAshi struct {
	Open, High, Low, Close []float64
}

// ComputeHeikinAshi derives Heikin-Ashi candles. Close is the OHLC mean;
// open is seeded at (open0+close0)/2 and then averages the previous HA
// open and close.
func ComputeHeikinAshi(candles []model.Candle) HeikinAshi {
	n := len(candles)
	ha := HeikinAshi{
		Open:  make([]float64, n),
		High:  make([]float64, n),
		Low:   make([]float64, n),
		Close: make([]float64, n),
	}
	for i, c := range candles {
		ha.Close[i] = (c.Open + c.High + c.Low + c.Close) / 4
		if i == 0 {
			ha.Open[i] = (c.Open + c.Close) / 2
		} else {
			ha.Open[i] = (ha.Open[i-1] + ha.Close[i-1]) / 2
		}
		ha.High[i] = math.Max(c.High, math.Max(ha.Open[i], ha.Close[i]))
		ha.Low[i] = math.Min(c.Low, math.Min(ha.Open[i], ha.Close[i]))
	}
	return ha
}

// Streak counts how many trailing HA candles share the last candle's
// colour. Positive for bullish, negative for bearish, 0 for a doji.
func (ha HeikinAshi) Streak() int {
	n := len(ha.Close)
	if n == 0 {
		return 0
	}
	sign := func(i int) int {
		switch {
		case ha.Close[i] > ha.Open[i]:
			return 1
		case ha.Close[i] < ha.Open[i]:
			return -1
		}
		return 0
	}
	s := sign(n - 1)
	if s == 0 {
		return 0
	}
	count := 0
	for i := n - 1; i >= 0 && sign(i) == s; i-- {
		count++
	}
	return count * s
}
