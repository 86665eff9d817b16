// Package pattern checks three-candle confirmation shapes on the newest bars.
package pattern

import (
	"math"

	"fxscanner/internal/indicator"
	"fxscanner/internal/model"
)

// minAvgBody floors the reference body size so a flat window cannot
// divide thresholds down to zero.
const minAvgBody = 1e-8

// Thresholds are body-size multiples of the rolling average body.
type Thresholds struct {
	Strong float64 `yaml:"strong"`
	Small  float64 `yaml:"small"`
}

// ReversalThresholds: strong >= 1.2x, small <= 0.35x.
func ReversalThresholds() Thresholds { return Thresholds{Strong: 1.2, Small: 0.35} }

// ContinuationThresholds: strong >= 1.1x, small <= 0.45x.
func ContinuationThresholds() Thresholds { return Thresholds{Strong: 1.1, Small: 0.45} }

// Match reports whether a shape held, with the values it was judged on.
type Match struct {
	OK      bool    `json:"ok"`
	AvgBody float64 `json:"avg_body"`
	Body1   float64 `json:"body1"`
	Body2   float64 `json:"body2"`
	Body3   float64 `json:"body3"`
}

func body(c model.Candle) float64 { return math.Abs(c.Close - c.Open) }

func last3(f *indicator.Frame) (c1, c2, c3 model.Candle, avg float64, ok bool) {
	n := f.Len()
	if n < 3 {
		return c1, c2, c3, 0, false
	}
	avg = indicator.Last(f.BodyAvg)
	if math.IsNaN(avg) || avg <= 0 {
		avg = minAvgBody
	}
	return f.Candles[n-3], f.Candles[n-2], f.Candles[n-1], avg, true
}

// moves reports whether c closed in dir.
func moves(c model.Candle, dir model.Direction) bool {
	if dir == model.DirBuy {
		return c.Bullish()
	}
	return c.Bearish()
}

// breaks reports whether c3 closed beyond c2's extreme in dir.
func breaks(c3, c2 model.Candle, dir model.Direction) bool {
	if dir == model.DirBuy {
		return c3.Close > c2.High
	}
	return c3.Close < c2.Low
}

// Reversal checks a strong candle against dir, an indecision candle, then
// a strong candle with dir that closes beyond the indecision candle.
func Reversal(f *indicator.Frame, dir model.Direction, t Thresholds) Match {
	c1, c2, c3, avg, ok := last3(f)
	if !ok || dir.Sign() == 0 {
		return Match{}
	}
	m := Match{AvgBody: avg, Body1: body(c1), Body2: body(c2), Body3: body(c3)}
	m.OK = moves(c1, dir.Opposite()) && m.Body1 >= t.Strong*avg &&
		m.Body2 <= t.Small*avg &&
		moves(c3, dir) && m.Body3 >= t.Strong*avg &&
		breaks(c3, c2, dir)
	return m
}

// Continuation checks a pullback candle against dir, an indecision candle,
// then a strong candle that closes beyond the indecision candle in dir.
// The pullback candle has no size requirement.
func Continuation(f *indicator.Frame, dir model.Direction, t Thresholds) Match {
	c1, c2, c3, avg, ok := last3(f)
	if !ok || dir.Sign() == 0 {
		return Match{}
	}
	m := Match{AvgBody: avg, Body1: body(c1), Body2: body(c2), Body3: body(c3)}
	m.OK = moves(c1, dir.Opposite()) &&
		m.Body2 <= t.Small*avg &&
		m.Body3 >= t.Strong*avg &&
		breaks(c3, c2, dir)
	return m
}
