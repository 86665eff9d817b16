package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timeframe is a bar duration in whole minutes (1, 2, 3, 5, ...).
type Timeframe int

// Duration returns the bar length.
func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) * time.Minute }

// String renders the label used in logs and alerts, e.g. "5m".
func (tf Timeframe) String() string { return strconv.Itoa(int(tf)) + "m" }

// BarClose returns the close time of the bar opened at open.
func (tf Timeframe) BarClose(open time.Time) time.Time { return open.Add(tf.Duration()) }

// CurrentBarClose returns the close of the bar that contains now, with
// bars aligned to the Unix epoch in UTC.
func (tf Timeframe) CurrentBarClose(now time.Time) time.Time {
	return now.UTC().Truncate(tf.Duration()).Add(tf.Duration())
}

// ParseTimeframe accepts "5", "5m" or "5min".
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSuffix(strings.TrimSuffix(s, "min"), "m")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	return Timeframe(n), nil
}

// Mode selects the rule set a timeframe is evaluated with.
type Mode string

const (
	ModeTrendFollow   Mode = "TREND_FOLLOW"
	ModeTrendReversal Mode = "TREND_REVERSAL"
)

// Label is the short human form used in reasons ("trend-follow", "reversal").
func (m Mode) Label() string {
	switch m {
	case ModeTrendFollow:
		return "trend-follow"
	case ModeTrendReversal:
		return "reversal"
	default:
		return strings.ToLower(string(m))
	}
}

// ParseMode accepts the canonical names and the short labels.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trend_follow", "trend-follow", "follow", "trend":
		return ModeTrendFollow, nil
	case "trend_reversal", "trend-reversal", "reversal":
		return ModeTrendReversal, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Direction is the side of a signal. The zero value means no signal.
type Direction string

const (
	DirNone Direction = ""
	DirBuy  Direction = "BUY"
	DirSell Direction = "SELL"
)

// Sign is +1 for BUY, -1 for SELL and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case DirBuy:
		return 1
	case DirSell:
		return -1
	}
	return 0
}

// Opposite returns the other side; DirNone stays DirNone.
func (d Direction) Opposite() Direction {
	switch d {
	case DirBuy:
		return DirSell
	case DirSell:
		return DirBuy
	}
	return DirNone
}
