package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDataUnavailable is returned by candle sources when a pair cannot be
// evaluated this tick: empty payload, malformed rows, provider error.
var ErrDataUnavailable = errors.New("candle data unavailable")

// Candle is one OHLCV bar. TS is the bar open time in UTC.
// Volume is zero when the feed carries none (most FX providers).
type Candle struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Body returns the signed candle body (close - open).
func (c Candle) Body() float64 { return c.Close - c.Open }

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool { return c.Close < c.Open }

// ValidateCandles checks that a sequence is usable as evaluation input:
// strictly increasing timestamps, finite positive prices and High >= Low.
// Errors wrap ErrDataUnavailable so callers can skip the pair.
func ValidateCandles(candles []Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("empty candle set: %w", ErrDataUnavailable)
	}
	for i, c := range candles {
		for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("bar %d (%s): bad price %v: %w", i, c.TS.Format(time.RFC3339), v, ErrDataUnavailable)
			}
		}
		if c.High < c.Low {
			return fmt.Errorf("bar %d (%s): high %v below low %v: %w", i, c.TS.Format(time.RFC3339), c.High, c.Low, ErrDataUnavailable)
		}
		if math.IsNaN(c.Volume) || c.Volume < 0 {
			return fmt.Errorf("bar %d: bad volume %v: %w", i, c.Volume, ErrDataUnavailable)
		}
		if i > 0 && !c.TS.After(candles[i-1].TS) {
			return fmt.Errorf("bar %d: timestamp %s not after %s: %w", i,
				c.TS.Format(time.RFC3339), candles[i-1].TS.Format(time.RFC3339), ErrDataUnavailable)
		}
	}
	return nil
}

// HasVolume reports whether any candle carries a non-zero volume.
func HasVolume(candles []Candle) bool {
	for _, c := range candles {
		if c.Volume > 0 {
			return true
		}
	}
	return false
}
