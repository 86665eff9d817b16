package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Probe checks one dependency; nil means healthy.
type Probe func(ctx context.Context) error

// HealthStatus represents the scanner's health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	MarketOpen     bool      `json:"market_open"`
	LastTickTime   time.Time `json:"last_tick_time"`
	LastSignalTime time.Time `json:"last_signal_time"`
	Instruments    []string  `json:"instruments"`
	Timeframes     []string  `json:"timeframes"`

	// Liveness check results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`

	// Probes left nil are reported as not configured, not as failing.
	redisProbe  Probe
	sqliteProbe Probe
	now         func() time.Time
	staleAfter  time.Duration
}

// NewHealthStatus returns a default health status. A tick older than
// staleAfter marks the scanner degraded.
func NewHealthStatus(staleAfter time.Duration) *HealthStatus {
	return &HealthStatus{
		StartedAt:  time.Now(),
		now:        time.Now,
		staleAfter: staleAfter,
	}
}

func (h *HealthStatus) SetProbes(redis, sqlite Probe) {
	h.mu.Lock()
	h.redisProbe, h.sqliteProbe = redis, sqlite
	h.mu.Unlock()
}

func (h *HealthStatus) SetScope(instruments, timeframes []string) {
	h.mu.Lock()
	h.Instruments, h.Timeframes = instruments, timeframes
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastSignalTime(t time.Time) {
	h.mu.Lock()
	h.LastSignalTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetMarketOpen(v bool) {
	h.mu.Lock()
	h.MarketOpen = v
	h.mu.Unlock()
}

// Check runs the configured checks and records latency + connectivity.
func (h *HealthStatus) Check(ctx context.Context) {
	h.mu.RLock()
	rp, sp := h.redisProbe, h.sqliteProbe
	h.mu.RUnlock()

	var redisOK, sqliteOK bool
	var redisMs, sqliteMs float64
	if rp != nil {
		start := time.Now()
		redisOK = rp(ctx) == nil
		redisMs = float64(time.Since(start).Microseconds()) / 1000.0
	}
	if sp != nil {
		start := time.Now()
		sqliteOK = sp(ctx) == nil
		sqliteMs = float64(time.Since(start).Microseconds()) / 1000.0
	}

	h.mu.Lock()
	h.RedisConnected, h.RedisLatencyMs = redisOK, redisMs
	h.SQLiteOK, h.SQLiteLatencyMs = sqliteOK, sqliteMs
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			h.Check(checkCtx)
			cancel()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	overallStatus := "healthy"
	httpCode := http.StatusOK

	stale := h.LastTickTime.IsZero() || (h.staleAfter > 0 && now.Sub(h.LastTickTime) > h.staleAfter)
	if stale || (h.redisProbe != nil && !h.RedisConnected) || (h.sqliteProbe != nil && !h.SQLiteOK) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = now.Sub(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		MarketOpen      bool     `json:"market_open"`
		LastTickTime    string   `json:"last_tick_time"`
		TickAge         string   `json:"tick_age"`
		LastSignalTime  string   `json:"last_signal_time,omitempty"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Instruments     []string `json:"instruments"`
		Timeframes      []string `json:"timeframes"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          now.Sub(h.StartedAt).Round(time.Second).String(),
		MarketOpen:      h.MarketOpen,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Instruments:     h.Instruments,
		Timeframes:      h.Timeframes,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}
	if !h.LastSignalTime.IsZero() {
		status.LastSignalTime = h.LastSignalTime.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	json.NewEncoder(w).Encode(status)
}
