package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fxscanner/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scanner.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func bars(n int, start time.Time, tf model.Timeframe) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		p := 1.1 + float64(i)*0.0001
		out[i] = model.Candle{TS: start.Add(time.Duration(i) * tf.Duration()), Open: p, High: p + 0.0002, Low: p - 0.0002, Close: p + 0.0001}
	}
	return out
}

func TestArchive_RoundTripNewestWindow(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	in := bars(10, start, 1)

	if err := s.ArchiveCandles(ctx, "EUR/USD", 1, in); err != nil {
		t.Fatalf("ArchiveCandles: %v", err)
	}
	got, err := s.FetchCandles(ctx, "EUR/USD", 1, 4)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d bars, want 4", len(got))
	}
	for i, c := range got {
		want := in[6+i]
		if !c.TS.Equal(want.TS) || c.Close != want.Close {
			t.Errorf("bar %d = %+v, want %+v", i, c, want)
		}
	}
	if err := model.ValidateCandles(got); err != nil {
		t.Errorf("archived window invalid: %v", err)
	}
}

func TestArchive_UpsertsFormingBar(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	in := bars(3, start, 5)
	s.ArchiveCandles(ctx, "GBP/USD", 5, in)

	in[2].Close = 1.2
	if err := s.ArchiveCandles(ctx, "GBP/USD", 5, in[2:]); err != nil {
		t.Fatalf("re-archive: %v", err)
	}
	got, _ := s.FetchCandles(ctx, "GBP/USD", 5, 10)
	if len(got) != 3 || got[2].Close != 1.2 {
		t.Errorf("forming bar not updated: %+v", got)
	}
}

func TestArchive_EmptyIsUnavailable(t *testing.T) {
	s := openTemp(t)
	_, err := s.FetchCandles(context.Background(), "USD/JPY", 1, 10)
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestJournal_PublishAndList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	barOpen := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

	recs := []model.SignalRecord{
		{ID: "1", Instrument: "EUR/USD", Timeframe: 1, Mode: model.ModeTrendFollow, Direction: model.DirBuy,
			Price: 1.1, BarOpen: barOpen, BarClose: barOpen.Add(time.Minute), Reason: "r1",
			Checks: []byte(`[{"name":"ema_slope","passed":true}]`), EmittedAt: barOpen.Add(45 * time.Second), Notified: true},
		{ID: "2", Instrument: "USD/JPY", Timeframe: 5, Mode: model.ModeTrendReversal, Direction: model.DirSell,
			Price: 150.1, BarOpen: barOpen, BarClose: barOpen.Add(5 * time.Minute), Reason: "r2",
			EmittedAt: barOpen.Add(4*time.Minute + 40*time.Second)},
	}
	for _, r := range recs {
		if err := s.PublishSignal(ctx, r); err != nil {
			t.Fatalf("PublishSignal %s: %v", r.ID, err)
		}
	}
	// same key, new id: ignored
	dup := recs[0]
	dup.ID = "3"
	if err := s.PublishSignal(ctx, dup); err != nil {
		t.Fatalf("duplicate publish: %v", err)
	}

	all, err := s.RecentSignals(ctx, "", time.Time{}, 10)
	if err != nil {
		t.Fatalf("RecentSignals: %v", err)
	}
	if len(all) != 2 || all[0].ID != "2" || all[1].ID != "1" {
		t.Fatalf("got %+v, want ids [2 1]", all)
	}
	if !all[1].Notified || all[1].Timeframe != 1 || string(all[1].Checks) != string(recs[0].Checks) {
		t.Errorf("record fields lost: %+v", all[1])
	}

	eur, _ := s.RecentSignals(ctx, "EUR/USD", time.Time{}, 10)
	if len(eur) != 1 || eur[0].Instrument != "EUR/USD" {
		t.Errorf("instrument filter: %+v", eur)
	}
	later, _ := s.RecentSignals(ctx, "", barOpen.Add(time.Minute), 10)
	if len(later) != 1 || later[0].ID != "2" {
		t.Errorf("since filter: %+v", later)
	}
}
