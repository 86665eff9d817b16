// Package bias estimates how often a directional move followed past visits
// to the current price zone.
package bias

import (
	"math"

	"fxscanner/internal/indicator"
	"fxscanner/internal/model"
)

// Params bounds the historical scan.
type Params struct {
	Lookback      int     `yaml:"lookback"`       // pivot window at the current bar
	SearchWindow  int     `yaml:"search_window"`  // how far back candidates are scanned
	Horizon       int     `yaml:"horizon"`        // forward bars inspected per match
	WinATRMult    float64 `yaml:"win_atr_mult"`   // required move, in ATRs at the match
	ZoneATRMult   float64 `yaml:"zone_atr_mult"`  // zone tolerance, in ATRs at the bar before idx
	ExcludeRecent int     `yaml:"exclude_recent"` // newest bars never used as candidates
}

// ReversalParams are the defaults for the reversal rule set.
func ReversalParams() Params {
	return Params{Lookback: 50, SearchWindow: 500, Horizon: 6, WinATRMult: 0.5, ZoneATRMult: 0.6, ExcludeRecent: 5}
}

// FollowParams are the defaults for the trend-following rule set.
func FollowParams() Params {
	return Params{Lookback: 30, SearchWindow: 200, Horizon: 4, WinATRMult: 0.4, ZoneATRMult: 0.6, ExcludeRecent: 5}
}

// Result is the outcome of one scan. WinRate is 0 when Matches is 0.
type Result struct {
	Matches int     `json:"matches"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}

// minBars is the shortest frame worth scanning.
const minBars = 10

// Analyze scans bars before idx whose close sat within ZoneATRMult times
// the ATR at idx-1 of the pivot midpoint at idx, and counts how many were
// followed within Horizon bars by a move of WinATRMult*ATR in dir, with the
// ATR taken at the matched bar. The forward window never extends past the
// end of the frame.
func Analyze(f *indicator.Frame, idx int, dir model.Direction, p Params) Result {
	n := f.Len()
	if n < minBars || idx < 1 || idx >= n || dir.Sign() == 0 {
		return Result{}
	}
	zone := f.PivotMidpoint(idx, p.Lookback)
	ref := f.ATR[idx-1]
	if math.IsNaN(zone) || math.IsNaN(ref) || ref <= 0 {
		return Result{}
	}
	tolerance := p.ZoneATRMult * ref

	start := idx - p.SearchWindow
	if start < p.ExcludeRecent {
		start = p.ExcludeRecent
	}
	end := idx - p.ExcludeRecent

	var r Result
	for i := start; i < end; i++ {
		closeI := f.Close[i]
		if math.Abs(closeI-zone) > tolerance {
			continue
		}
		r.Matches++

		hi := i + 1 + p.Horizon
		if hi > n {
			hi = n
		}
		if i+1 >= hi {
			continue
		}
		// an undefined ATR at the match never counts as a win
		if won(f.Close[i+1:hi], closeI, dir, p.WinATRMult*f.ATR[i]) {
			r.Wins++
		}
	}
	if r.Matches > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Matches)
	}
	return r
}

func won(forward []float64, entry float64, dir model.Direction, need float64) bool {
	if dir == model.DirBuy {
		best := math.Inf(-1)
		for _, c := range forward {
			best = math.Max(best, c)
		}
		return best-entry >= need
	}
	worst := math.Inf(1)
	for _, c := range forward {
		worst = math.Min(worst, c)
	}
	return entry-worst >= need
}
