package indicator

import (
	"errors"
	"fmt"
	"math"

	"fxscanner/internal/model"
)

// ErrInsufficientData is returned when a window is shorter than the
// longest lookback. No partial frame is produced.
var ErrInsufficientData = errors.New("insufficient bars")

// Params configures every series in a Frame.
type Params struct {
	EMAPeriod       int              `yaml:"ema_period"`
	Alligator       AlligatorParams  `yaml:"alligator"`
	Stochastic      StochasticParams `yaml:"stochastic"`
	ATRPeriod       int              `yaml:"atr_period"`
	ATRSmoothing    string           `yaml:"atr_smoothing"`
	ATRMedianWindow int              `yaml:"atr_median_window"`
	VolumeMAPeriod  int              `yaml:"volume_ma_period"`
	BodyAvgPeriod   int              `yaml:"body_avg_period"`

	// TrailingBars is how many fully-defined bars past the EMA warm-up
	// the evaluators read.
	TrailingBars int `yaml:"trailing_bars"`
}

// DefaultParams returns EMA 150, Alligator 15/8/5, stochastic 14/3/3,
// ATR 14 (rolling mean) with a 50-bar median, volume MA 20, body avg 20.
func DefaultParams() Params {
	return Params{
		EMAPeriod:       150,
		Alligator:       DefaultAlligator(),
		Stochastic:      DefaultStochastic(),
		ATRPeriod:       14,
		ATRSmoothing:    SmoothingSMA,
		ATRMedianWindow: 50,
		VolumeMAPeriod:  20,
		BodyAvgPeriod:   20,
		TrailingBars:    10,
	}
}

// MinBars is the shortest window Compute accepts.
func (p Params) MinBars() int { return p.EMAPeriod + p.TrailingBars }

// Validate rejects non-positive periods and unknown smoothing names.
func (p Params) Validate() error {
	checks := []struct {
		name string
		v    int
	}{
		{"ema_period", p.EMAPeriod},
		{"alligator.jaw_period", p.Alligator.JawPeriod},
		{"alligator.teeth_period", p.Alligator.TeethPeriod},
		{"alligator.lips_period", p.Alligator.LipsPeriod},
		{"stochastic.k_period", p.Stochastic.KPeriod},
		{"stochastic.smooth", p.Stochastic.Smooth},
		{"stochastic.d_period", p.Stochastic.DPeriod},
		{"atr_period", p.ATRPeriod},
		{"atr_median_window", p.ATRMedianWindow},
		{"volume_ma_period", p.VolumeMAPeriod},
		{"body_avg_period", p.BodyAvgPeriod},
	}
	for _, c := range checks {
		if c.v < 1 {
			return fmt.Errorf("indicator: %s must be >= 1, got %d", c.name, c.v)
		}
	}
	if p.Alligator.JawShift < 0 || p.Alligator.TeethShift < 0 || p.Alligator.LipsShift < 0 {
		return errors.New("indicator: alligator shifts must be >= 0")
	}
	if p.TrailingBars < 0 {
		return errors.New("indicator: trailing_bars must be >= 0")
	}
	switch p.ATRSmoothing {
	case "", SmoothingSMA, SmoothingWilder:
	default:
		return fmt.Errorf("indicator: unknown ATR smoothing %q", p.ATRSmoothing)
	}
	return nil
}

// Frame is a candle window extended with every derived series. All slices
// share the candle indexing; NaN marks an undefined value.
type Frame struct {
	Candles []model.Candle
	Params  Params

	Open, High, Low, Close, Volume []float64

	EMA              []float64
	Jaw, Teeth, Lips []float64
	K, D             []float64
	ATR, ATRMedian   []float64
	VolumeMA         []float64
	BodyAvg          []float64
	FractalUp        []bool
	FractalDown      []bool
	HA               HeikinAshi
	VolumeAvailable  bool
}

// Compute builds a Frame from candles. It returns ErrInsufficientData
// (wrapped with the counts) when len(candles) < p.MinBars().
func Compute(candles []model.Candle, p Params) (*Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(candles) < p.MinBars() {
		return nil, fmt.Errorf("have %d, need %d: %w", len(candles), p.MinBars(), ErrInsufficientData)
	}

	n := len(candles)
	f := &Frame{
		Candles: candles,
		Params:  p,
		Open:    make([]float64, n),
		High:    make([]float64, n),
		Low:     make([]float64, n),
		Close:   make([]float64, n),
		Volume:  make([]float64, n),
	}
	bodies := make([]float64, n)
	for i, c := range candles {
		f.Open[i], f.High[i], f.Low[i], f.Close[i], f.Volume[i] = c.Open, c.High, c.Low, c.Close, c.Volume
		bodies[i] = math.Abs(c.Close - c.Open)
	}
	f.VolumeAvailable = model.HasVolume(candles)

	f.EMA = EMASeries(f.Close, p.EMAPeriod)
	f.Jaw, f.Teeth, f.Lips = Alligator(f.Close, p.Alligator)
	f.K, f.D = Stochastic(f.High, f.Low, f.Close, p.Stochastic)

	atr, err := ATR(f.High, f.Low, f.Close, p.ATRPeriod, p.ATRSmoothing)
	if err != nil {
		return nil, err
	}
	f.ATR = atr
	f.ATRMedian = RollingMedian(atr, p.ATRMedianWindow, 1)
	f.VolumeMA = RollingMean(f.Volume, p.VolumeMAPeriod, 1)
	f.BodyAvg = RollingMean(bodies, p.BodyAvgPeriod, 1)
	f.FractalUp, f.FractalDown = Fractals(f.High, f.Low)
	f.HA = ComputeHeikinAshi(candles)
	return f, nil
}

// Len is the number of bars in the frame.
func (f *Frame) Len() int { return len(f.Candles) }

// LastIndex is the index of the newest bar.
func (f *Frame) LastIndex() int { return len(f.Candles) - 1 }

// Last returns the newest candle.
func (f *Frame) Last() model.Candle { return f.Candles[len(f.Candles)-1] }

// PivotMidpoint returns (max high + min low)/2 over the lookback bars
// ending at idx. Windows shorter than lookback near the start use what is
// available. NaN when idx is out of range.
func (f *Frame) PivotMidpoint(idx, lookback int) float64 {
	if idx < 0 || idx >= f.Len() {
		return math.NaN()
	}
	if lookback < 1 {
		lookback = 1
	}
	lo := idx - lookback + 1
	if lo < 0 {
		lo = 0
	}
	hi, low := math.Inf(-1), math.Inf(1)
	for i := lo; i <= idx; i++ {
		hi = math.Max(hi, f.High[i])
		low = math.Min(low, f.Low[i])
	}
	return (hi + low) / 2
}
