package sqlite

import (
	"context"
	"fmt"
	"time"

	"fxscanner/internal/model"
)

type candleRow struct {
	TS     int64   `db:"ts"`
	Open   float64 `db:"open"`
	High   float64 `db:"high"`
	Low    float64 `db:"low"`
	Close  float64 `db:"close"`
	Volume float64 `db:"volume"`
}

// ArchiveCandles upserts bars in one transaction. Re-archiving a bar
// overwrites it, so the still-forming last bar converges to its final
// values on later ticks.
func (s *Store) ArchiveCandles(ctx context.Context, instrument string, tf model.Timeframe, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO candles_tf (instrument, tf, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instrument, tf, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, instrument, int(tf), c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("sqlite insert candle %s: %w", c.TS.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// FetchCandles returns the newest count archived bars ascending, making the
// archive usable as an offline CandleSource.
func (s *Store) FetchCandles(ctx context.Context, instrument string, tf model.Timeframe, count int) ([]model.Candle, error) {
	var rows []candleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles_tf
			WHERE instrument = ? AND tf = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, instrument, int(tf), count)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles_tf: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no archived %s bars for %s: %w", tf, instrument, model.ErrDataUnavailable)
	}

	out := make([]model.Candle, len(rows))
	for i, r := range rows {
		out[i] = model.Candle{
			TS:   time.Unix(r.TS, 0).UTC(),
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		}
	}
	return out, nil
}
