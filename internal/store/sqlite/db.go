// Package sqlite persists emitted signals and archived candles.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Store wraps a single SQLite database holding the signal journal and the
// candle archive.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path in WAL mode and
// applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// single writer; readers share the same connection under WAL
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info().Str("component", "sqlite").Str("path", path).Msg("opened database")
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS candles_tf (
	instrument TEXT    NOT NULL,
	tf         INTEGER NOT NULL,
	ts         INTEGER NOT NULL,
	open       REAL    NOT NULL,
	high       REAL    NOT NULL,
	low        REAL    NOT NULL,
	close      REAL    NOT NULL,
	volume     REAL    NOT NULL DEFAULT 0,
	PRIMARY KEY (instrument, tf, ts)
);

CREATE TABLE IF NOT EXISTS signals (
	id         TEXT    PRIMARY KEY,
	instrument TEXT    NOT NULL,
	tf         INTEGER NOT NULL,
	mode       TEXT    NOT NULL,
	direction  TEXT    NOT NULL,
	price      REAL    NOT NULL,
	bar_open   INTEGER NOT NULL,
	bar_close  INTEGER NOT NULL,
	reason     TEXT    NOT NULL,
	checks     TEXT    NOT NULL DEFAULT '[]',
	emitted_at INTEGER NOT NULL,
	notified   INTEGER NOT NULL DEFAULT 0,
	UNIQUE (instrument, tf, bar_close)
);

CREATE INDEX IF NOT EXISTS idx_signals_emitted ON signals (emitted_at DESC);
`

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }
