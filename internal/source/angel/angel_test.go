package angel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fxscanner/internal/model"
	"fxscanner/pkg/smartconnect"
)

const candleData = `{"status": true, "message": "SUCCESS", "errorcode": "", "data": [
  ["2025-03-03T15:30:00+05:30", 87.1, 87.2, 87.0, 87.15, 1200],
  ["2025-03-03T15:35:00+05:30", 87.15, 87.3, 87.1, 87.25, 900],
  ["2025-03-03T15:40:00+05:30", 87.25, 87.4, 87.2, 87.35, 1100]
]}`

// fakeSmartAPI serves login and candle routes; the first expire candle
// requests answer with an expired-token error.
func fakeSmartAPI(t *testing.T, expire int32) (*httptest.Server, *int32, *[]map[string]any) {
	t.Helper()
	var logins int32
	var reqs []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		switch {
		case strings.HasSuffix(r.URL.Path, "/loginByPassword"):
			atomic.AddInt32(&logins, 1)
			if len(body["totp"].(string)) != 6 {
				t.Errorf("totp = %v", body["totp"])
			}
			w.Write([]byte(`{"status": true, "data": {"jwtToken": "Bearer JWT", "refreshToken": "R", "feedToken": "F"}}`))
		case strings.HasSuffix(r.URL.Path, "/getCandleData"):
			if r.Header.Get("Authorization") != "Bearer JWT" {
				t.Errorf("authorization = %q", r.Header.Get("Authorization"))
			}
			reqs = append(reqs, body)
			if atomic.AddInt32(&expire, -1) >= 0 {
				w.Write([]byte(`{"status": false, "message": "Invalid Token", "errorcode": "AG8001", "data": null}`))
				return
			}
			w.Write([]byte(candleData))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &logins, &reqs
}

func newSource(url string) *Source {
	sc := smartconnect.New(smartconnect.Config{APIKey: "K", RootURL: url, ClientLocalIP: "10.0.0.1", ClientMAC: "aa:bb"})
	s := New(sc, Credentials{ClientCode: "C1", Password: "1234", TOTPSecret: "JBSWY3DPEHPK3PXP"})
	s.now = func() time.Time { return time.Date(2025, 3, 3, 10, 12, 0, 0, time.UTC) }
	return s
}

func TestFetchCandles_LoginAndParse(t *testing.T) {
	srv, logins, reqs := fakeSmartAPI(t, 0)
	s := newSource(srv.URL)

	got, err := s.FetchCandles(context.Background(), "CDS:1", 5, 2)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(got) != 2 || got[1].Close != 87.35 || got[1].Volume != 1100 {
		t.Fatalf("got %+v", got)
	}
	if !got[0].TS.Equal(time.Date(2025, 3, 3, 10, 5, 0, 0, time.UTC)) {
		t.Errorf("TS not converted to UTC: %v", got[0].TS)
	}
	req := (*reqs)[0]
	if req["exchange"] != "CDS" || req["symboltoken"] != "1" || req["interval"] != "FIVE_MINUTE" {
		t.Errorf("request = %v", req)
	}
	if req["todate"] != "2025-03-03 15:42" {
		t.Errorf("todate = %v, want IST wall time", req["todate"])
	}

	s.FetchCandles(context.Background(), "CDS:1", 5, 2)
	if *logins != 1 {
		t.Errorf("logins = %d, want session reuse", *logins)
	}
}

func TestFetchCandles_ReloginOnExpiredToken(t *testing.T) {
	srv, logins, _ := fakeSmartAPI(t, 1)
	s := newSource(srv.URL)

	if _, err := s.FetchCandles(context.Background(), "CDS:1", 1, 3); err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if *logins != 2 {
		t.Errorf("logins = %d, want 2", *logins)
	}
}

func TestFetchCandles_BadInput(t *testing.T) {
	s := newSource("http://127.0.0.1:1")
	if _, err := s.FetchCandles(context.Background(), "EURUSD", 5, 10); !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("bad instrument: %v", err)
	}
	if _, err := s.FetchCandles(context.Background(), "CDS:1", 2, 10); !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("2m interval: %v", err)
	}
}

func TestLookbackBounds(t *testing.T) {
	if lookback(1, 10) != 72*time.Hour {
		t.Errorf("short lookback = %v", lookback(1, 10))
	}
	if lookback(60, 1000) != 30*24*time.Hour {
		t.Errorf("long lookback = %v", lookback(60, 1000))
	}
}
