package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fxscanner/internal/model"
)

const seriesJSON = `{
  "meta": {"symbol": "EUR/USD", "interval": "5min"},
  "values": [
    {"datetime": "2025-03-03 10:10:00", "open": "1.08420", "high": "1.08450", "low": "1.08400", "close": "1.08440"},
    {"datetime": "2025-03-03 10:05:00", "open": "1.08400", "high": "1.08430", "low": "1.08390", "close": "1.08420"},
    {"datetime": "2025-03-03 10:00:00", "open": "1.08380", "high": "1.08410", "low": "1.08370", "close": "1.08400", "volume": "12"}
  ],
  "status": "ok"
}`

func TestFetchCandles_ReversesToAscending(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/time_series" {
			t.Errorf("path = %q", r.URL.Path)
		}
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(seriesJSON))
	}))
	defer srv.Close()

	c := New(srv.URL, "KEY")
	got, err := c.FetchCandles(context.Background(), "EUR/USD", 5, 3)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if query["symbol"] != "EUR/USD" || query["interval"] != "5min" || query["outputsize"] != "3" ||
		query["apikey"] != "KEY" || query["timezone"] != "UTC" {
		t.Errorf("query = %v", query)
	}
	if len(got) != 3 {
		t.Fatalf("got %d bars", len(got))
	}
	if !got[0].TS.Equal(time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)) || got[0].Volume != 12 {
		t.Errorf("first bar = %+v", got[0])
	}
	if got[2].Close != 1.0844 {
		t.Errorf("last close = %v", got[2].Close)
	}
	if err := model.ValidateCandles(got); err != nil {
		t.Errorf("parsed bars invalid: %v", err)
	}
}

func TestParseTimeSeries_Errors(t *testing.T) {
	cases := map[string]string{
		"status error": `{"code": 429, "message": "run out of API credits", "status": "error"}`,
		"empty values": `{"values": [], "status": "ok"}`,
		"malformed":    `{"values": [`,
		"missing open": `{"values": [{"datetime": "2025-03-03 10:00:00", "high": "1", "low": "1", "close": "1"}]}`,
		"bad datetime": `{"values": [{"datetime": "yesterday", "open": "1", "high": "1", "low": "1", "close": "1"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseTimeSeries([]byte(body))
			if !errors.Is(err, model.ErrDataUnavailable) {
				t.Errorf("expected ErrDataUnavailable, got %v", err)
			}
		})
	}
}

func TestFetchCandles_UnsupportedInterval(t *testing.T) {
	c := New("http://127.0.0.1:1", "k")
	if _, err := c.FetchCandles(context.Background(), "EUR/USD", 3, 10); !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for 3m, got %v", err)
	}
}

func TestFetchCandles_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").FetchCandles(context.Background(), "EUR/USD", 1, 10)
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}
