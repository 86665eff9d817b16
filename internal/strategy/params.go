package strategy

import (
	"errors"
	"fmt"

	"fxscanner/internal/bias"
	"fxscanner/internal/indicator"
	"fxscanner/internal/model"
	"fxscanner/internal/pattern"
)

// ReversalParams configures the trend-reversal rule set.
type ReversalParams struct {
	Indicators indicator.Params   `yaml:"indicators"`
	Bias       bias.Params        `yaml:"bias"`
	Pattern    pattern.Thresholds `yaml:"pattern"`

	SideWindow        int     `yaml:"side_window"`        // bars inspected for sustained EMA side
	SideMinBars       int     `yaml:"side_min_bars"`      // bars that must sit on one side
	ContractionWindow int     `yaml:"contraction_window"` // prior bars averaged for jaw/lips spread
	ContractionRatio  float64 `yaml:"contraction_ratio"`
	Oversold          float64 `yaml:"oversold"`
	Overbought        float64 `yaml:"overbought"`
	MinMatches        int     `yaml:"min_matches"`
	MinWinRate        float64 `yaml:"min_win_rate"`
}

// FollowParams configures the trend-following rule set.
type FollowParams struct {
	Indicators indicator.Params   `yaml:"indicators"`
	Bias       bias.Params        `yaml:"bias"`
	Pattern    pattern.Thresholds `yaml:"pattern"`

	SlopeBars     int     `yaml:"slope_bars"` // EMA slope is EMA[-1] - EMA[-SlopeBars]
	ATRMedianMult float64 `yaml:"atr_median_mult"`
	BuyStochLow   float64 `yaml:"buy_stoch_low"`
	BuyStochHigh  float64 `yaml:"buy_stoch_high"`
	SellStochLow  float64 `yaml:"sell_stoch_low"`
	SellStochHigh float64 `yaml:"sell_stoch_high"`
	MinWinRate    float64 `yaml:"min_win_rate"`
}

// Params is the full evaluator configuration.
type Params struct {
	Modes    ModeTable      `yaml:"modes"`
	Reversal ReversalParams `yaml:"reversal"`
	Follow   FollowParams   `yaml:"follow"`
}

// DefaultParams returns the reference thresholds.
func DefaultParams() Params {
	revInd := indicator.DefaultParams()
	revInd.ATRMedianWindow = 50

	folInd := indicator.DefaultParams()
	folInd.ATRMedianWindow = 30

	return Params{
		Modes: DefaultModeTable(),
		Reversal: ReversalParams{
			Indicators:        revInd,
			Bias:              bias.ReversalParams(),
			Pattern:           pattern.ReversalThresholds(),
			SideWindow:        10,
			SideMinBars:       6,
			ContractionWindow: 20,
			ContractionRatio:  0.75,
			Oversold:          20,
			Overbought:        80,
			MinMatches:        2,
			MinWinRate:        0.25,
		},
		Follow: FollowParams{
			Indicators:    folInd,
			Bias:          bias.FollowParams(),
			Pattern:       pattern.ContinuationThresholds(),
			SlopeBars:     6,
			ATRMedianMult: 0.5,
			BuyStochLow:   20,
			BuyStochHigh:  50,
			SellStochLow:  50,
			SellStochHigh: 80,
			MinWinRate:    0.45,
		},
	}
}

// Validate reports the first inconsistent setting.
func (p Params) Validate() error {
	if len(p.Modes) == 0 {
		return errors.New("strategy: no timeframe modes configured")
	}
	for tf, m := range p.Modes {
		if tf <= 0 {
			return fmt.Errorf("strategy: invalid timeframe %d", tf)
		}
		if m != model.ModeTrendFollow && m != model.ModeTrendReversal {
			return fmt.Errorf("strategy: timeframe %s has unknown mode %q", tf, m)
		}
	}
	if err := p.Reversal.Indicators.Validate(); err != nil {
		return fmt.Errorf("reversal: %w", err)
	}
	if err := p.Follow.Indicators.Validate(); err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	r := p.Reversal
	if r.SideWindow < 1 || r.SideMinBars < 1 || r.SideMinBars > r.SideWindow {
		return fmt.Errorf("strategy: side_min_bars %d must be within side_window %d", r.SideMinBars, r.SideWindow)
	}
	if r.ContractionWindow < 1 {
		return errors.New("strategy: contraction_window must be >= 1")
	}
	// the trailing windows must fit inside the post-warm-up bars
	if r.SideWindow > r.Indicators.TrailingBars+1 {
		return fmt.Errorf("strategy: side_window %d exceeds trailing_bars %d", r.SideWindow, r.Indicators.TrailingBars)
	}
	if p.Follow.SlopeBars < 2 || p.Follow.SlopeBars > p.Follow.Indicators.TrailingBars+1 {
		return fmt.Errorf("strategy: slope_bars %d must be in [2, trailing_bars+1]", p.Follow.SlopeBars)
	}
	for name, b := range map[string]bias.Params{"reversal": r.Bias, "follow": p.Follow.Bias} {
		if b.Lookback < 1 || b.SearchWindow < 1 || b.Horizon < 1 || b.ExcludeRecent < 0 {
			return fmt.Errorf("strategy: %s bias windows must be positive", name)
		}
	}
	return nil
}
