package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"fxscanner/internal/model"
)

func makeCandles(closes []float64) []model.Candle {
	t0 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		out[i] = model.Candle{
			TS:    t0.Add(time.Duration(i) * time.Minute),
			Open:  open,
			High:  math.Max(open, c) + 0.0005,
			Low:   math.Min(open, c) - 0.0005,
			Close: c,
		}
	}
	return out
}

func TestFractals_SingleSpike(t *testing.T) {
	high := []float64{1, 2, 5, 2, 1}
	low := []float64{1, 2, 5, 2, 1}
	up, down := Fractals(high, low)
	for i := range up {
		if up[i] != (i == 2) {
			t.Errorf("up[%d] = %v", i, up[i])
		}
		if down[i] {
			t.Errorf("down[%d] set on a peak series", i)
		}
	}
}

func TestFractals_LastTwoNeverFlagged(t *testing.T) {
	// A falling series makes the final bar the lowest low.
	high := []float64{9, 8, 7, 6, 5, 4, 3, 2, 1}
	low := []float64{9, 8, 7, 6, 5, 4, 3, 2, 1}
	_, down := Fractals(high, low)
	for i, f := range down {
		if f {
			t.Errorf("down[%d] flagged on a monotone series", i)
		}
	}

	values := syntheticCloses(120)
	up, dn := Fractals(values, values)
	n := len(values)
	if up[n-1] || up[n-2] || dn[n-1] || dn[n-2] {
		t.Error("a fractal was flagged on one of the last two bars")
	}
	if LastFractal(up) < 0 {
		t.Error("expected at least one high fractal on an oscillating series")
	}
}

func TestStochastic_Bounded(t *testing.T) {
	candles := makeCandles(syntheticCloses(300))
	f, err := Compute(candles, DefaultParams())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := range f.K {
		for _, v := range []float64{f.K[i], f.D[i]} {
			if math.IsNaN(v) {
				continue
			}
			if v < 0 || v > 100 {
				t.Fatalf("bar %d: stochastic %v out of [0,100]", i, v)
			}
		}
	}
}

func TestStochastic_FlatRangeIsZero(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 1.25
	}
	k, d := Stochastic(flat, flat, flat, DefaultStochastic())
	for i := 13 + 2; i < len(k); i++ {
		if math.IsNaN(k[i]) || k[i] != 0 {
			t.Fatalf("k[%d] = %v, want 0", i, k[i])
		}
	}
	if v := Last(d); v != 0 {
		t.Errorf("d = %v, want 0", v)
	}
}

func TestStochastic_CloseAtHigh(t *testing.T) {
	// Strictly rising closes at the bar high pin raw %K near 100.
	n := 20
	high, low, cl := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		cl[i] = float64(10 + i)
		high[i] = cl[i]
		low[i] = cl[i] - 1
	}
	k, _ := Stochastic(high, low, cl, DefaultStochastic())
	assertClose(t, "K at high", Last(k), 100, 1e-6)
}

func TestAlligator_ShiftAlignment(t *testing.T) {
	closes := syntheticCloses(60)
	p := DefaultAlligator()
	jaw, teeth, lips := Alligator(closes, p)
	smmaJaw := SMMASeries(closes, p.JawPeriod)

	for i := 0; i < p.JawPeriod-1+p.JawShift; i++ {
		assertUndefined(t, "jaw warm-up", jaw[i])
	}
	for i := p.JawPeriod - 1 + p.JawShift; i < len(closes); i++ {
		if jaw[i] != smmaJaw[i-p.JawShift] {
			t.Fatalf("jaw[%d] = %v, want smma[%d] = %v", i, jaw[i], i-p.JawShift, smmaJaw[i-p.JawShift])
		}
	}
	if math.IsNaN(Last(teeth)) || math.IsNaN(Last(lips)) {
		t.Error("teeth/lips undefined on the current bar")
	}
}

func TestAlligator_ZeroShift(t *testing.T) {
	closes := syntheticCloses(40)
	p := AlligatorParams{JawPeriod: 13, TeethPeriod: 8, LipsPeriod: 5}
	jaw, _, _ := Alligator(closes, p)
	want := SMMASeries(closes, 13)
	for i := range jaw {
		if math.IsNaN(want[i]) != math.IsNaN(jaw[i]) || (!math.IsNaN(want[i]) && want[i] != jaw[i]) {
			t.Fatalf("jaw[%d] = %v, want %v", i, jaw[i], want[i])
		}
	}
}

func TestATR_SmoothingMethods(t *testing.T) {
	high := []float64{11, 12, 13, 12, 14}
	low := []float64{9, 10, 11, 10, 12}
	cl := []float64{10, 11, 12, 11, 13}
	// TR: 2, 2, 2, 2, max(2, |14-11|=3, |12-11|=1) = 3
	sma, err := ATR(high, low, cl, 2, SmoothingSMA)
	if err != nil {
		t.Fatal(err)
	}
	assertUndefined(t, "ATR[0]", sma[0])
	assertClose(t, "ATR sma[1]", sma[1], 2, 1e-9)
	assertClose(t, "ATR sma[4]", sma[4], 2.5, 1e-9)

	wilder, err := ATR(high, low, cl, 2, SmoothingWilder)
	if err != nil {
		t.Fatal(err)
	}
	// seed 2, then (2*1+2)/2=2, 2, (2+3)/2=2.5
	assertClose(t, "ATR wilder[4]", wilder[4], 2.5, 1e-9)

	if _, err := ATR(high, low, cl, 2, "ema"); err == nil {
		t.Error("expected error for unknown smoothing")
	}
}

func TestRollingMedian(t *testing.T) {
	v := []float64{math.NaN(), 5, 1, 3, 2, 8}
	got := RollingMedian(v, 3, 1)
	assertUndefined(t, "median[0]", got[0])
	assertClose(t, "median[1]", got[1], 5, 0)
	assertClose(t, "median[2]", got[2], 3, 0) // {5,1}
	assertClose(t, "median[3]", got[3], 3, 0) // {5,1,3}
	assertClose(t, "median[5]", got[5], 3, 0) // {3,2,8}
}

func TestHeikinAshi_Recurrence(t *testing.T) {
	candles := []model.Candle{
		{Open: 10, High: 12, Low: 9, Close: 11},
		{Open: 11, High: 13, Low: 10, Close: 12},
	}
	ha := ComputeHeikinAshi(candles)
	assertClose(t, "HA close[0]", ha.Close[0], 10.5, 1e-12)
	assertClose(t, "HA open[0]", ha.Open[0], 10.5, 1e-12)
	assertClose(t, "HA close[1]", ha.Close[1], 11.5, 1e-12)
	assertClose(t, "HA open[1]", ha.Open[1], 10.5, 1e-12)
	if ha.Streak() != 1 {
		t.Errorf("streak = %d, want 1", ha.Streak())
	}
}

func TestCompute_InsufficientData(t *testing.T) {
	p := DefaultParams()
	_, err := Compute(makeCandles(syntheticCloses(p.MinBars()-1)), p)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCompute_FrameShape(t *testing.T) {
	p := DefaultParams()
	candles := makeCandles(syntheticCloses(p.MinBars()))
	f, err := Compute(candles, p)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for name, s := range map[string][]float64{
		"ema": f.EMA, "jaw": f.Jaw, "k": f.K, "atr": f.ATR, "atr_median": f.ATRMedian, "body": f.BodyAvg,
	} {
		if len(s) != f.Len() {
			t.Errorf("%s has %d values, want %d", name, len(s), f.Len())
		}
		if math.IsNaN(Last(s)) {
			t.Errorf("%s undefined on the last bar", name)
		}
	}
	if f.VolumeAvailable {
		t.Error("volume reported available on a zero-volume feed")
	}
	if math.IsNaN(At(f.EMA, -10)) {
		t.Error("EMA undefined inside the trailing window")
	}
}

func TestCompute_RejectsBadParams(t *testing.T) {
	p := DefaultParams()
	p.ATRSmoothing = "ema"
	if _, err := Compute(makeCandles(syntheticCloses(200)), p); err == nil {
		t.Error("expected error for unknown smoothing")
	}
	p = DefaultParams()
	p.Stochastic.KPeriod = 0
	if err := p.Validate(); err == nil {
		t.Error("expected error for zero k period")
	}
}

func TestPivotMidpoint(t *testing.T) {
	f := &Frame{
		Candles: make([]model.Candle, 4),
		High:    []float64{5, 7, 6, 4},
		Low:     []float64{3, 4, 2, 3},
	}
	// window of 2 ending at 2: max(7,6)=7, min(4,2)=2 → 4.5
	assertClose(t, "pivot", f.PivotMidpoint(2, 2), 4.5, 1e-12)
	// window longer than history uses what exists
	assertClose(t, "pivot short", f.PivotMidpoint(0, 10), 4, 1e-12)
	assertUndefined(t, "pivot oob", f.PivotMidpoint(9, 2))
}
