package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.GateDecisions.WithLabelValues("emit").Inc()
	m.Evaluations.WithLabelValues("5m", "TREND_REVERSAL", "NO_SIGNAL").Add(2)

	if got := testutil.ToFloat64(m.GateDecisions.WithLabelValues("emit")); got != 1 {
		t.Errorf("emit decisions = %v", got)
	}
	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues("5m", "TREND_REVERSAL", "NO_SIGNAL")); got != 2 {
		t.Errorf("evaluations = %v", got)
	}
	if n, err := testutil.GatherAndCount(reg, "fxscan_gate_decisions_total"); err != nil || n != 1 {
		t.Errorf("gathered %d series, err %v", n, err)
	}

	// a second set on its own registry must not collide
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(nil)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHealth_DegradedUntilFirstTick(t *testing.T) {
	h := NewHealthStatus(time.Minute)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable || decode(t, rec)["status"] != "degraded" {
		t.Errorf("code=%d body=%s", rec.Code, rec.Body)
	}

	h.SetLastTickTime(time.Now())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "healthy" {
		t.Errorf("code=%d body=%s", rec.Code, rec.Body)
	}
}

func TestHealth_StaleTick(t *testing.T) {
	h := NewHealthStatus(10 * time.Second)
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	h.SetLastTickTime(now.Add(-30 * time.Second))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body := decode(t, rec)
	if rec.Code != http.StatusServiceUnavailable || body["tick_age"] != "30s" {
		t.Errorf("code=%d body=%v", rec.Code, body)
	}
}

func TestHealth_ProbeFailureDegrades(t *testing.T) {
	h := NewHealthStatus(0)
	h.SetLastTickTime(time.Now())
	h.SetProbes(
		func(context.Context) error { return errors.New("redis down") },
		func(context.Context) error { return nil },
	)
	h.Check(context.Background())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body := decode(t, rec)
	if rec.Code != http.StatusServiceUnavailable || body["redis_connected"] != false || body["sqlite_ok"] != true {
		t.Errorf("code=%d body=%v", rec.Code, body)
	}
}
