package strategy

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"fxscanner/internal/model"
)

// ModeTable maps each scanned timeframe to its rule set. It is static
// configuration; mode selection never looks at market data.
type ModeTable map[model.Timeframe]model.Mode

// DefaultModeTable: 1/2/3m trend-following, 5m trend-reversal.
func DefaultModeTable() ModeTable {
	return ModeTable{
		1: model.ModeTrendFollow,
		2: model.ModeTrendFollow,
		3: model.ModeTrendFollow,
		5: model.ModeTrendReversal,
	}
}

// ModeFor returns the mode for tf.
func (t ModeTable) ModeFor(tf model.Timeframe) (model.Mode, bool) {
	m, ok := t[tf]
	return m, ok
}

// Timeframes returns the configured timeframes ascending.
func (t ModeTable) Timeframes() []model.Timeframe {
	out := make([]model.Timeframe, 0, len(t))
	for tf := range t {
		out = append(out, tf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Longest returns the largest configured timeframe, 0 if empty.
func (t ModeTable) Longest() model.Timeframe {
	var max model.Timeframe
	for tf := range t {
		if tf > max {
			max = tf
		}
	}
	return max
}

// UnmarshalYAML reads a mapping such as {"1m": trend-follow, "5m": reversal}.
// A decoded table replaces the receiver rather than merging into it.
func (t *ModeTable) UnmarshalYAML(n *yaml.Node) error {
	var raw map[string]string
	if err := n.Decode(&raw); err != nil {
		return err
	}
	out := make(ModeTable, len(raw))
	for k, v := range raw {
		tf, err := model.ParseTimeframe(k)
		if err != nil {
			return fmt.Errorf("modes: %w", err)
		}
		m, err := model.ParseMode(v)
		if err != nil {
			return fmt.Errorf("modes[%s]: %w", k, err)
		}
		out[tf] = m
	}
	*t = out
	return nil
}
