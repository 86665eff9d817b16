// Package alertgate decides whether a signal may be sent: only inside the
// closing window of its bar, and at most once per (instrument, timeframe,
// bar close).
package alertgate

import (
	"context"
	"fmt"
	"time"

	"fxscanner/internal/model"
	"fxscanner/internal/strategy"
)

// Decision is the gate's verdict for one evaluation.
type Decision string

const (
	DecisionEmit          Decision = "emit"
	DecisionNoSignal      Decision = "no_signal"
	DecisionOutsideWindow Decision = "outside_window"
	DecisionDuplicate     Decision = "duplicate"
)

// KeyStore remembers emitted keys until they expire.
type KeyStore interface {
	// MarkOnce records key until expireAt and reports whether it was new.
	// The check and the insert are atomic.
	MarkOnce(ctx context.Context, key string, now, expireAt time.Time) (bool, error)
}

// DefaultWindow is the width of the pre-close window.
const DefaultWindow = 30 * time.Second

// Gate applies the window and de-duplication rules. It is safe for
// concurrent use when its store is.
type Gate struct {
	store     KeyStore
	window    time.Duration
	retention time.Duration
}

// New creates a gate. Keys are kept until bar close + retention; retention
// should cover the longest scanned timeframe so a key outlives every
// re-evaluation of its bar.
func New(store KeyStore, window, retention time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &Gate{store: store, window: window, retention: retention}
}

// Window returns the pre-close window width.
func (g *Gate) Window() time.Duration { return g.window }

// InWindow reports whether now lies in [barClose-window, barClose].
func (g *Gate) InWindow(barClose, now time.Time) bool {
	return !now.Before(barClose.Add(-g.window)) && !now.After(barClose)
}

// Admit returns DecisionEmit exactly once per key, and only while now is
// inside the key's window. The key stays marked whatever happens to the
// notification afterwards. A store error suppresses the alert.
func (g *Gate) Admit(ctx context.Context, instrument string, ev *strategy.Evaluation, now time.Time) (Decision, error) {
	if ev == nil || !ev.HasSignal() {
		return DecisionNoSignal, nil
	}
	barClose := ev.BarClose()
	if !g.InWindow(barClose, now) {
		return DecisionOutsideWindow, nil
	}
	key := model.AlertKey{Instrument: instrument, Timeframe: ev.Timeframe, BarClose: barClose}
	first, err := g.store.MarkOnce(ctx, key.String(), now, barClose.Add(g.retention))
	if err != nil {
		return DecisionDuplicate, fmt.Errorf("alertgate: mark %s: %w", key, err)
	}
	if !first {
		return DecisionDuplicate, nil
	}
	return DecisionEmit, nil
}
