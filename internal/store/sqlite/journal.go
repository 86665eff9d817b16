package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fxscanner/internal/model"
)

type signalRow struct {
	ID         string  `db:"id"`
	Instrument string  `db:"instrument"`
	TF         int     `db:"tf"`
	Mode       string  `db:"mode"`
	Direction  string  `db:"direction"`
	Price      float64 `db:"price"`
	BarOpen    int64   `db:"bar_open"`
	BarClose   int64   `db:"bar_close"`
	Reason     string  `db:"reason"`
	Checks     string  `db:"checks"`
	EmittedAt  int64   `db:"emitted_at"`
	Notified   bool    `db:"notified"`
}

// Name implements model.SignalSink.
func (s *Store) Name() string { return "sqlite-journal" }

// PublishSignal journals rec. A second record for the same
// (instrument, timeframe, bar close) is ignored.
func (s *Store) PublishSignal(ctx context.Context, rec model.SignalRecord) error {
	checks := string(rec.Checks)
	if checks == "" {
		checks = "[]"
	}
	row := signalRow{
		ID:         rec.ID,
		Instrument: rec.Instrument,
		TF:         int(rec.Timeframe),
		Mode:       string(rec.Mode),
		Direction:  string(rec.Direction),
		Price:      rec.Price,
		BarOpen:    rec.BarOpen.Unix(),
		BarClose:   rec.BarClose.Unix(),
		Reason:     rec.Reason,
		Checks:     checks,
		EmittedAt:  rec.EmittedAt.UnixMilli(),
		Notified:   rec.Notified,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO signals
			(id, instrument, tf, mode, direction, price, bar_open, bar_close, reason, checks, emitted_at, notified)
		VALUES
			(:id, :instrument, :tf, :mode, :direction, :price, :bar_open, :bar_close, :reason, :checks, :emitted_at, :notified)
	`, row)
	if err != nil {
		return fmt.Errorf("sqlite insert signal %s: %w", rec.ID, err)
	}
	return nil
}

// RecentSignals lists journaled signals newest first. An empty instrument
// matches all; a zero since matches all time.
func (s *Store) RecentSignals(ctx context.Context, instrument string, since time.Time, limit int) ([]model.SignalRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var sinceMs int64
	if !since.IsZero() {
		sinceMs = since.UnixMilli()
	}

	var rows []signalRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, instrument, tf, mode, direction, price, bar_open, bar_close, reason, checks, emitted_at, notified
		FROM signals
		WHERE (? = '' OR instrument = ?) AND emitted_at >= ?
		ORDER BY emitted_at DESC
		LIMIT ?
	`, instrument, instrument, sinceMs, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}

	out := make([]model.SignalRecord, len(rows))
	for i, r := range rows {
		out[i] = model.SignalRecord{
			ID:         r.ID,
			Instrument: r.Instrument,
			Timeframe:  model.Timeframe(r.TF),
			Mode:       model.Mode(r.Mode),
			Direction:  model.Direction(r.Direction),
			Price:      r.Price,
			BarOpen:    time.Unix(r.BarOpen, 0).UTC(),
			BarClose:   time.Unix(r.BarClose, 0).UTC(),
			Reason:     r.Reason,
			Checks:     json.RawMessage(r.Checks),
			EmittedAt:  time.UnixMilli(r.EmittedAt).UTC(),
			Notified:   r.Notified,
		}
	}
	return out, nil
}
