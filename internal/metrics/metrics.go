package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the signal scanner.
type Metrics struct {
	TicksTotal   prometheus.Counter
	TickDuration prometheus.Histogram
	PairDuration prometheus.Histogram
	PairPanics   prometheus.Counter

	// Candle fetch
	FetchErrors  *prometheus.CounterVec // labels: reason=unavailable|timeout|invalid
	FetchRetries prometheus.Counter
	CandleAge    *prometheus.GaugeVec // labels: tf

	// Evaluation and gating
	Evaluations      *prometheus.CounterVec // labels: tf, mode, state
	GateDecisions    *prometheus.CounterVec // labels: decision
	SignalsEmitted   *prometheus.CounterVec // labels: tf, direction
	GateKeys         prometheus.Gauge
	GateEvictions    prometheus.Counter
	GateCapEvictions prometheus.Counter // live keys dropped by GATE_MAX_KEYS
	WindowSkips      prometheus.Counter

	// Delivery
	NotifyFailures prometheus.Counter
	SinkFailures   *prometheus.CounterVec // labels: sink

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter
	RedisGateFallbacks       prometheus.Counter

	// Dashboard
	WSClients prometheus.Gauge
	WSDrops   prometheus.Counter

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics builds all collectors and registers them with reg.
// A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_ticks_total",
			Help: "Total scan ticks started",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxscan_tick_duration_seconds",
			Help:    "Wall time of one full scan over all pairs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		PairDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxscan_pair_duration_seconds",
			Help:    "Fetch plus evaluation latency per (instrument, timeframe)",
			Buckets: prometheus.DefBuckets,
		}),
		PairPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_pair_panics_total",
			Help: "Pair scans aborted by a recovered panic",
		}),

		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxscan_fetch_errors_total",
			Help: "Candle fetches that left a pair unevaluated",
		}, []string{"reason"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_fetch_retries_total",
			Help: "Candle fetch retries",
		}),
		CandleAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fxscan_candle_age_seconds",
			Help: "Seconds between the newest bar open and the scan time",
		}, []string{"tf"}),

		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxscan_evaluations_total",
			Help: "Evaluations by timeframe, mode and resulting state",
		}, []string{"tf", "mode", "state"}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxscan_gate_decisions_total",
			Help: "Alert gate decisions",
		}, []string{"decision"}),
		SignalsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxscan_signals_emitted_total",
			Help: "Alerts emitted",
		}, []string{"tf", "direction"}),
		GateKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxscan_gate_keys",
			Help: "Alert keys currently retained by the in-process gate store",
		}),
		GateEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_gate_evictions_total",
			Help: "Expired alert keys dropped by the in-process gate store",
		}),
		GateCapEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_gate_cap_evictions_total",
			Help: "Unexpired alert keys evicted because the gate store hit its cap; each reopens a bar to a repeat alert",
		}),
		WindowSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_window_skips_total",
			Help: "Pairs skipped because the current bar is outside the alert window",
		}),

		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_notify_failures_total",
			Help: "Alert deliveries that failed",
		}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxscan_sink_failures_total",
			Help: "Signal sink writes that failed",
		}, []string{"sink"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxscan_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_redis_buffered_writes_total",
			Help: "Signals buffered locally while the Redis breaker was open",
		}),
		RedisGateFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_redis_gate_fallbacks_total",
			Help: "Gate checks answered by the local store because Redis failed",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxscan_ws_clients",
			Help: "Connected dashboard websocket clients",
		}),
		WSDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxscan_ws_drops_total",
			Help: "Signal messages dropped for slow websocket clients",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxscan_market_state",
			Help: "FX session state (0=closed, 1=open)",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TicksTotal,
			m.TickDuration,
			m.PairDuration,
			m.PairPanics,
			m.FetchErrors,
			m.FetchRetries,
			m.CandleAge,
			m.Evaluations,
			m.GateDecisions,
			m.SignalsEmitted,
			m.GateKeys,
			m.GateEvictions,
			m.GateCapEvictions,
			m.WindowSkips,
			m.NotifyFailures,
			m.SinkFailures,
			m.RedisCircuitBreakerState,
			m.RedisCircuitBreakerTrips,
			m.RedisBufferedWrites,
			m.RedisGateFallbacks,
			m.WSClients,
			m.WSDrops,
			m.MarketState,
		)
	}
	return m
}
