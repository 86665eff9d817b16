// Package strategy turns a candle window into a BUY/SELL/no-signal decision
// under one of two rule sets, selected by timeframe.
//
// Evaluation is a pure function of its inputs: every call recomputes the
// indicator frame and carries no state into the next call.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"fxscanner/internal/indicator"
	"fxscanner/internal/model"
)

// State is the outcome class of one evaluation.
type State string

const (
	StateInsufficientData State = "INSUFFICIENT_DATA"
	StateNoSignal         State = "NO_SIGNAL"
	StateSignalBuy        State = "SIGNAL_BUY"
	StateSignalSell       State = "SIGNAL_SELL"
)

// Check is one sub-condition of a rule set with the values it was judged on.
type Check struct {
	Name    string             `json:"name"`
	Passed  bool               `json:"passed"`
	Skipped bool               `json:"skipped,omitempty"`
	Values  map[string]float64 `json:"values,omitempty"`
}

func newCheck(name string) Check {
	return Check{Name: name, Values: make(map[string]float64, 4)}
}

// set records v unless it is undefined (NaN does not encode as JSON).
func (c *Check) set(key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	c.Values[key] = v
}

// Evaluation is the decision for one (instrument, timeframe) window.
type Evaluation struct {
	Mode      model.Mode      `json:"mode"`
	Timeframe model.Timeframe `json:"timeframe"`
	State     State           `json:"state"`
	Signal    model.Direction `json:"signal,omitempty"`
	Price     float64         `json:"price"`
	BarTime   time.Time       `json:"bar_time"` // open time of the evaluated bar
	Checks    []Check         `json:"checks"`
	Reason    string          `json:"reason"`

	// Context holds informational readings that do not gate the decision.
	Context map[string]float64 `json:"context,omitempty"`
}

// HasSignal reports whether the evaluation produced BUY or SELL.
func (e *Evaluation) HasSignal() bool {
	return e.State == StateSignalBuy || e.State == StateSignalSell
}

// BarClose is the close time of the evaluated bar.
func (e *Evaluation) BarClose() time.Time { return e.Timeframe.BarClose(e.BarTime) }

// Failed returns the name of the first failed check, or "".
func (e *Evaluation) Failed() string {
	for _, c := range e.Checks {
		if !c.Passed {
			return c.Name
		}
	}
	return ""
}

// record appends c and, when it failed, closes the evaluation as NO_SIGNAL.
func (e *Evaluation) record(c Check) bool {
	e.Checks = append(e.Checks, c)
	if !c.Passed {
		e.State = StateNoSignal
		e.Signal = model.DirNone
		e.Reason = c.Name + " failed"
	}
	return c.Passed
}

func (e *Evaluation) emit(dir model.Direction) {
	e.Signal = dir
	if dir == model.DirBuy {
		e.State = StateSignalBuy
	} else {
		e.State = StateSignalSell
	}
	e.Reason = fmt.Sprintf("%s %s %s - all conditions met", e.Timeframe, e.Mode.Label(), dir)
}

// Evaluator applies the configured rule sets.
type Evaluator struct {
	params Params
}

// NewEvaluator validates p and returns an evaluator.
func NewEvaluator(p Params) (*Evaluator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{params: p}, nil
}

// Params returns the evaluator configuration.
func (e *Evaluator) Params() Params { return e.params }

// MinBars is the window length the scanner should fetch for tf.
func (e *Evaluator) MinBars(tf model.Timeframe) int {
	mode, ok := e.params.Modes.ModeFor(tf)
	if !ok {
		return 0
	}
	return e.indicatorParams(mode).MinBars()
}

func (e *Evaluator) indicatorParams(mode model.Mode) indicator.Params {
	if mode == model.ModeTrendReversal {
		return e.params.Reversal.Indicators
	}
	return e.params.Follow.Indicators
}

// Evaluate runs the rule set configured for tf over candles.
func (e *Evaluator) Evaluate(candles []model.Candle, tf model.Timeframe) Evaluation {
	mode, ok := e.params.Modes.ModeFor(tf)
	if !ok {
		ev := Evaluation{Timeframe: tf, State: StateNoSignal}
		c := newCheck("mode")
		ev.record(c)
		ev.Reason = "no mode configured for " + tf.String()
		return ev
	}
	return e.EvaluateMode(candles, tf, mode)
}

// EvaluateMode runs a specific rule set, bypassing the mode table.
func (e *Evaluator) EvaluateMode(candles []model.Candle, tf model.Timeframe, mode model.Mode) Evaluation {
	ev := Evaluation{Mode: mode, Timeframe: tf, State: StateNoSignal}
	if n := len(candles); n > 0 {
		ev.Price = candles[n-1].Close
		ev.BarTime = candles[n-1].TS
	}

	ip := e.indicatorParams(mode)
	f, err := indicator.Compute(candles, ip)
	if err != nil {
		c := newCheck("insufficient_bars")
		c.set("have", float64(len(candles)))
		c.set("need", float64(ip.MinBars()))
		ev.record(c)
		if errors.Is(err, indicator.ErrInsufficientData) {
			ev.State = StateInsufficientData
			ev.Reason = "insufficient_bars"
		} else {
			ev.Reason = err.Error()
		}
		return ev
	}

	ev.Context = frameContext(f)
	switch mode {
	case model.ModeTrendReversal:
		e.reversal(f, &ev)
	default:
		e.follow(f, &ev)
	}
	return ev
}

// frameContext collects readings reported alongside the checks.
func frameContext(f *indicator.Frame) map[string]float64 {
	ctx := make(map[string]float64, 8)
	put := func(k string, v float64) {
		if !math.IsNaN(v) {
			ctx[k] = v
		}
	}
	last := f.LastIndex()
	put("ema", indicator.Last(f.EMA))
	put("k", indicator.Last(f.K))
	put("d", indicator.Last(f.D))
	put("atr", indicator.Last(f.ATR))
	put("ha_streak", float64(f.HA.Streak()))
	if i := indicator.LastFractal(f.FractalUp); i >= 0 {
		put("bars_since_fractal_high", float64(last-i))
		put("fractal_high", f.High[i])
	}
	if i := indicator.LastFractal(f.FractalDown); i >= 0 {
		put("bars_since_fractal_low", float64(last-i))
		put("fractal_low", f.Low[i])
	}
	return ctx
}
