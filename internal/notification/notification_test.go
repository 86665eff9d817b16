package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fxscanner/internal/model"
	"fxscanner/internal/strategy"
)

func sampleEvaluation() strategy.Evaluation {
	return strategy.Evaluation{
		Mode:      model.ModeTrendFollow,
		Timeframe: 1,
		State:     strategy.StateSignalBuy,
		Signal:    model.DirBuy,
		Price:     1.084251,
		BarTime:   time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
		Reason:    "1m trend-follow BUY - all conditions met",
	}
}

func TestFormatSignal_Layout(t *testing.T) {
	a := FormatSignal("EUR/USD", sampleEvaluation())
	if a.Title != "📊 SIGNAL (BUY)" {
		t.Errorf("title = %q", a.Title)
	}
	want := strings.Join([]string{
		"Pair: EUR/USD",
		"Mode: trend-follow",
		"TF: 1m",
		"Price: 1.08425",
		"Bar close: 2025-03-03 10:01:00 UTC",
		"Reason: 1m trend-follow BUY - all conditions met",
	}, "\n")
	if a.Message != want {
		t.Errorf("message:\n%s\nwant:\n%s", a.Message, want)
	}
}

func TestFormatSignal_JPYPrecision(t *testing.T) {
	ev := sampleEvaluation()
	ev.Price = 149.87654
	a := FormatSignal("USD/JPY", ev)
	if !strings.Contains(a.Message, "Price: 149.877\n") {
		t.Errorf("message = %q", a.Message)
	}
}

func TestFormatRecord_MatchesFormatSignal(t *testing.T) {
	ev := sampleEvaluation()
	rec := model.SignalRecord{
		Instrument: "EUR/USD", Timeframe: ev.Timeframe, Mode: ev.Mode, Direction: ev.Signal,
		Price: ev.Price, BarOpen: ev.BarTime, Reason: ev.Reason,
	}
	if FormatRecord(rec) != FormatSignal("EUR/USD", ev) {
		t.Error("record and evaluation render differently")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("EUR/USD 1.08 (5m) - ok!")
	want := `EUR/USD 1\.08 \(5m\) \- ok\!`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTelegram_PostsMarkdown(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42").WithBaseURL(srv.URL + "/")
	if err := n.Send(context.Background(), FormatSignal("EUR/USD", sampleEvaluation())); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "MarkdownV2" {
		t.Errorf("payload = %v", got)
	}
	if !strings.HasPrefix(got["text"], "*📊 SIGNAL \\(BUY\\)*\nPair: EUR/USD") {
		t.Errorf("text = %q", got["text"])
	}
}

func TestTelegram_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("T", "1").WithBaseURL(srv.URL)
	if err := n.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Error("expected error on 400")
	}
}

func TestWebhook_PostsJSON(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.now = func() time.Time { return time.Date(2025, 3, 3, 10, 0, 45, 0, time.UTC) }
	alert := Alert{Level: AlertInfo, Title: "t", Message: "m"}
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Title != "t" || got.Message != "m" || got.Level != AlertInfo || got.TS != "2025-03-03T10:00:45Z" {
		t.Errorf("payload = %+v", got)
	}
}

type recordingNotifier struct {
	sent []Alert
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, a Alert) error {
	r.sent = append(r.sent, a)
	return r.err
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingNotifier{err: boom}
	b := &recordingNotifier{}
	m := Multi{a, b, NewLogNotifier()}

	err := m.Send(context.Background(), Alert{Title: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined boom, got %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("delivery counts a=%d b=%d", len(a.sent), len(b.sent))
	}
	if err := (Multi{b}).Send(context.Background(), Alert{}); err != nil {
		t.Errorf("clean fan-out returned %v", err)
	}
}
