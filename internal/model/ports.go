package model

import (
	"context"
	"time"
)

// ── Ports ──
// These interfaces decouple the scan loop from concrete providers and stores.

// CandleSource returns the most recent count bars for instrument at tf,
// ascending by time. A failed or malformed fetch returns an error wrapping
// ErrDataUnavailable; implementations never panic on bad payloads.
type CandleSource interface {
	FetchCandles(ctx context.Context, instrument string, tf Timeframe, count int) ([]Candle, error)
}

// CandleArchiver persists fetched bars for later offline evaluation.
type CandleArchiver interface {
	ArchiveCandles(ctx context.Context, instrument string, tf Timeframe, candles []Candle) error
}

// SignalSink receives every alert that passed the gate.
type SignalSink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	PublishSignal(ctx context.Context, rec SignalRecord) error
}

// SignalReader lists journaled signals, newest first.
type SignalReader interface {
	RecentSignals(ctx context.Context, instrument string, since time.Time, limit int) ([]SignalRecord, error)
}
