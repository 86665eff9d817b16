// Package markethours models the weekly spot FX session: continuous from
// Sunday 22:00 UTC to Friday 22:00 UTC, closed over the weekend and on
// the global holidays liquidity providers observe.
package markethours

import (
	"fmt"
	"time"
)

// Weekly session boundaries in UTC.
const (
	OpenWeekday  = time.Sunday
	CloseWeekday = time.Friday
	RolloverHour = 22
)

// holidays lists month/day pairs on which the market stays shut all day.
var holidays = []struct {
	month time.Month
	day   int
}{
	{time.December, 25},
	{time.January, 1},
}

// IsHoliday reports whether t's UTC date is a full-day closure.
func IsHoliday(t time.Time) bool {
	u := t.UTC()
	for _, h := range holidays {
		if u.Month() == h.month && u.Day() == h.day {
			return true
		}
	}
	return false
}

// IsMarketOpen reports whether spot FX is trading at t.
func IsMarketOpen(t time.Time) bool {
	u := t.UTC()
	if IsHoliday(u) {
		return false
	}
	switch u.Weekday() {
	case time.Saturday:
		return false
	case OpenWeekday:
		return u.Hour() >= RolloverHour
	case CloseWeekday:
		return u.Hour() < RolloverHour
	}
	return true
}

// NextOpen returns the next instant at or after t when the market is open.
func NextOpen(t time.Time) time.Time {
	u := t.UTC()
	if IsMarketOpen(u) {
		return u
	}
	// walk hour boundaries; the longest closure is a weekend plus a holiday
	cur := u.Truncate(time.Hour)
	for i := 0; i < 24*5; i++ {
		cur = cur.Add(time.Hour)
		if IsMarketOpen(cur) {
			return cur
		}
	}
	return cur
}

// NextClose returns the start of the next closure after t.
func NextClose(t time.Time) time.Time {
	u := t.UTC()
	if !IsMarketOpen(u) {
		return u
	}
	cur := u.Truncate(time.Hour)
	for i := 0; i < 24*7; i++ {
		cur = cur.Add(time.Hour)
		if !IsMarketOpen(cur) {
			return cur
		}
	}
	return cur
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("FX open, closes in %s", fmtDur(NextClose(t).Sub(t)))
	}
	next := NextOpen(t)
	return fmt.Sprintf("FX closed, opens %s %s UTC (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
