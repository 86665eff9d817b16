package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"fxscanner/internal/alertgate"
	"fxscanner/internal/model"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeReader struct {
	recs       []model.SignalRecord
	err        error
	instrument string
	since      time.Time
	limit      int
}

func (f *fakeReader) RecentSignals(_ context.Context, instrument string, since time.Time, limit int) ([]model.SignalRecord, error) {
	f.instrument, f.since, f.limit = instrument, since, limit
	return f.recs, f.err
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSignals_PassesFilters(t *testing.T) {
	reader := &fakeReader{recs: []model.SignalRecord{{ID: "a", Instrument: "EUR/USD", Timeframe: 5, Direction: model.DirSell}}}
	r := NewRouter(Deps{Signals: reader})

	w := get(r, "/api/v1/signals?instrument=EUR/USD&since=2025-03-03T00:00:00Z&limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	if reader.instrument != "EUR/USD" || reader.limit != 5 || !reader.since.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("reader got %q %v %d", reader.instrument, reader.since, reader.limit)
	}
	var body struct {
		Signals []model.SignalRecord `json:"signals"`
		Count   int                  `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Count != 1 || body.Signals[0].Direction != model.DirSell {
		t.Errorf("body = %s", w.Body)
	}
}

func TestSignals_EmptyIsArray(t *testing.T) {
	r := NewRouter(Deps{Signals: &fakeReader{}})
	w := get(r, "/api/v1/signals")
	if !strings.Contains(w.Body.String(), `"signals":[]`) {
		t.Errorf("body = %s", w.Body)
	}
}

func TestSignals_BadQuery(t *testing.T) {
	r := NewRouter(Deps{Signals: &fakeReader{}})
	for _, path := range []string{"/api/v1/signals?since=yesterday", "/api/v1/signals?limit=0", "/api/v1/signals?limit=x"} {
		if w := get(r, path); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", path, w.Code)
		}
	}
}

func TestSignals_ReaderError(t *testing.T) {
	r := NewRouter(Deps{Signals: &fakeReader{err: errors.New("disk I/O error")}})
	w := get(r, "/api/v1/signals")
	if w.Code != http.StatusInternalServerError || strings.Contains(w.Body.String(), "disk") {
		t.Errorf("status %d body %s", w.Code, w.Body)
	}
}

func TestGate_WindowStatus(t *testing.T) {
	now := time.Date(2025, 3, 3, 10, 4, 40, 0, time.UTC)
	r := NewRouter(Deps{
		Gate:       alertgate.New(alertgate.NewMemoryStore(0), 30*time.Second, 0),
		GateKeys:   func() int { return 7 },
		Timeframes: []model.Timeframe{1, 5},
		Now:        func() time.Time { return now },
	})

	w := get(r, "/api/v1/gate")
	var body struct {
		Window     float64        `json:"window_seconds"`
		Keys       int            `json:"retained_keys"`
		Timeframes []windowStatus `json:"timeframes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Window != 30 || body.Keys != 7 || len(body.Timeframes) != 2 {
		t.Fatalf("body = %s", w.Body)
	}
	one, five := body.Timeframes[0], body.Timeframes[1]
	// 10:04:40 is 20s before both the 1m and the 5m close
	if !one.InWindow || !one.BarClose.Equal(time.Date(2025, 3, 3, 10, 5, 0, 0, time.UTC)) {
		t.Errorf("1m = %+v", one)
	}
	if !five.InWindow || five.OpensIn != 0 {
		t.Errorf("5m = %+v", five)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "fxscan_test_total", Help: "t"})
	reg.MustRegister(c)
	c.Inc()

	health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"status":"healthy"}`)) })
	r := NewRouter(Deps{Health: health, Gatherer: reg})

	if w := get(r, "/healthz"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("healthz: %d %s", w.Code, w.Body)
	}
	if w := get(r, "/metrics"); !strings.Contains(w.Body.String(), "fxscan_test_total 1") {
		t.Errorf("metrics body missing counter: %s", w.Body)
	}
	if w := get(r, "/api/v1/signals"); w.Code != http.StatusNotFound {
		t.Errorf("signals without a reader: status %d", w.Code)
	}
}
