package strategy

import (
	"math"

	"fxscanner/internal/bias"
	"fxscanner/internal/indicator"
	"fxscanner/internal/model"
	"fxscanner/internal/pattern"
)

// reversal applies the trend-reversal rules. Checks run in order and the
// first failure ends the evaluation.
func (e *Evaluator) reversal(f *indicator.Frame, ev *Evaluation) {
	p := e.params.Reversal
	n := f.Len()

	// 1. sustained side of the EMA picks the candidate direction
	below, above := 0, 0
	for i := n - p.SideWindow; i < n; i++ {
		switch {
		case f.Close[i] < f.EMA[i]:
			below++
		case f.Close[i] > f.EMA[i]:
			above++
		}
	}
	c := newCheck("price_bias")
	c.set("below", float64(below))
	c.set("above", float64(above))
	var dir model.Direction
	switch {
	case below >= p.SideMinBars:
		dir = model.DirBuy
	case above >= p.SideMinBars:
		dir = model.DirSell
	}
	c.Passed = dir != model.DirNone
	if !ev.record(c) {
		return
	}

	// 2. jaw/lips spread contracting against its recent mean
	c = newCheck("alligator_contraction")
	spreadNow := math.Abs(f.Lips[n-1] - f.Jaw[n-1])
	sum, count := 0.0, 0
	for i := n - 1 - p.ContractionWindow; i < n-1; i++ {
		if i < 0 || math.IsNaN(f.Lips[i]) || math.IsNaN(f.Jaw[i]) {
			continue
		}
		sum += math.Abs(f.Lips[i] - f.Jaw[i])
		count++
	}
	c.set("spread", spreadNow)
	if count > 0 {
		mean := sum / float64(count)
		c.set("mean_spread", mean)
		c.Passed = !math.IsNaN(spreadNow) && mean > 0 && spreadNow < p.ContractionRatio*mean
	}
	if !ev.record(c) {
		return
	}

	// 3. stochastic at an extreme and turning back
	c = newCheck("stochastic")
	kNow, kPrev := f.K[n-1], f.K[n-2]
	c.set("k", kNow)
	c.set("k_prev", kPrev)
	c.set("d", f.D[n-1])
	if !math.IsNaN(kNow) && !math.IsNaN(kPrev) {
		if dir == model.DirBuy {
			c.Passed = kNow < p.Oversold && kNow >= kPrev
		} else {
			c.Passed = kNow > p.Overbought && kNow <= kPrev
		}
	}
	if !ev.record(c) {
		return
	}

	// 4. volatility above its median
	c = newCheck("volatility")
	atr, med := f.ATR[n-1], f.ATRMedian[n-1]
	c.set("atr", atr)
	c.set("atr_median", med)
	c.Passed = atr > med
	if !ev.record(c) {
		return
	}

	// 5. history at this zone favours the move
	c = newCheck("historical_bias")
	hb := bias.Analyze(f, n-1, dir, p.Bias)
	setBias(&c, hb)
	c.Passed = hb.Matches >= p.MinMatches && hb.WinRate >= p.MinWinRate
	if !ev.record(c) {
		return
	}

	// 6. three-candle reversal
	c = newCheck("pattern")
	m := pattern.Reversal(f, dir, p.Pattern)
	setPattern(&c, m)
	c.Passed = m.OK
	if !ev.record(c) {
		return
	}

	ev.emit(dir)
}

func setBias(c *Check, r bias.Result) {
	c.set("matches", float64(r.Matches))
	c.set("wins", float64(r.Wins))
	c.set("win_rate", r.WinRate)
}

func setPattern(c *Check, m pattern.Match) {
	c.set("avg_body", m.AvgBody)
	c.set("body1", m.Body1)
	c.set("body2", m.Body2)
	c.set("body3", m.Body3)
}
