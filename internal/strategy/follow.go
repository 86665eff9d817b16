package strategy

import (
	"math"

	"fxscanner/internal/bias"
	"fxscanner/internal/indicator"
	"fxscanner/internal/model"
	"fxscanner/internal/pattern"
)

// follow applies the trend-following rules.
func (e *Evaluator) follow(f *indicator.Frame, ev *Evaluation) {
	p := e.params.Follow
	n := f.Len()
	last := n - 1

	// 1. EMA slope sets the direction
	c := newCheck("ema_slope")
	slope := f.EMA[last] - f.EMA[last-(p.SlopeBars-1)]
	c.set("slope", slope)
	var dir model.Direction
	switch {
	case slope > 0:
		dir = model.DirBuy
	case slope < 0:
		dir = model.DirSell
	}
	c.Passed = dir != model.DirNone
	if !ev.record(c) {
		return
	}

	// 2. price and the alligator stacked in the trend direction
	c = newCheck("alignment")
	cl, ema := f.Close[last], f.EMA[last]
	lips, teeth, jaw := f.Lips[last], f.Teeth[last], f.Jaw[last]
	c.set("close", cl)
	c.set("ema", ema)
	c.set("lips", lips)
	c.set("teeth", teeth)
	c.set("jaw", jaw)
	if dir == model.DirBuy {
		c.Passed = cl > ema && lips > teeth && teeth > jaw
	} else {
		c.Passed = cl < ema && lips < teeth && teeth < jaw
	}
	if !ev.record(c) {
		return
	}

	// 3. volatility not collapsed
	c = newCheck("volatility")
	atr, med := f.ATR[last], f.ATRMedian[last]
	c.set("atr", atr)
	c.set("atr_median", med)
	c.Passed = atr >= p.ATRMedianMult*med
	if !ev.record(c) {
		return
	}

	// 4. volume at or above its average, when the feed has volume
	c = newCheck("volume")
	if f.VolumeAvailable {
		c.set("volume", f.Volume[last])
		c.set("volume_ma", f.VolumeMA[last])
		c.Passed = f.Volume[last] >= f.VolumeMA[last]
	} else {
		c.Passed, c.Skipped = true, true
	}
	if !ev.record(c) {
		return
	}

	// 5. stochastic pulling back toward the trend inside its band
	c = newCheck("stochastic")
	kNow, kPrev := f.K[last], f.K[last-1]
	c.set("k", kNow)
	c.set("k_prev", kPrev)
	c.set("d", f.D[last])
	if !math.IsNaN(kNow) && !math.IsNaN(kPrev) {
		if dir == model.DirBuy {
			c.Passed = kNow > kPrev && kNow >= p.BuyStochLow && kNow <= p.BuyStochHigh
		} else {
			c.Passed = kNow < kPrev && kNow >= p.SellStochLow && kNow <= p.SellStochHigh
		}
	}
	if !ev.record(c) {
		return
	}

	// 6. no historical evidence against the move
	c = newCheck("historical_bias")
	hb := bias.Analyze(f, last, dir, p.Bias)
	setBias(&c, hb)
	c.Passed = hb.Matches == 0 || hb.WinRate >= p.MinWinRate
	if !ev.record(c) {
		return
	}

	// 7. three-candle continuation
	c = newCheck("pattern")
	m := pattern.Continuation(f, dir, p.Pattern)
	setPattern(&c, m)
	c.Passed = m.OK
	if !ev.record(c) {
		return
	}

	ev.emit(dir)
}
