package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"fxscanner/config"
	"fxscanner/internal/alertgate"
	"fxscanner/internal/api"
	"fxscanner/internal/gateway"
	"fxscanner/internal/logger"
	"fxscanner/internal/metrics"
	"fxscanner/internal/model"
	"fxscanner/internal/notification"
	"fxscanner/internal/scanner"
	"fxscanner/internal/source"
	"fxscanner/internal/source/provider"
	redisstore "fxscanner/internal/store/redis"
	"fxscanner/internal/store/sqlite"
	"fxscanner/internal/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("scanner", "info", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init("scanner", cfg.LogLevel, cfg.LogPretty)
	log.Info().Str("provider", cfg.Provider).Strs("instruments", cfg.Instruments).Msg("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)

	timeframes := cfg.ScanTimeframes()
	health := metrics.NewHealthStatus(3*cfg.PollInterval + 30*time.Second)
	health.SetScope(cfg.Instruments, timeframeLabels(timeframes))

	evaluator, err := strategy.NewEvaluator(cfg.Strategy)
	if err != nil {
		log.Fatal().Err(err).Msg("strategy parameters")
	}

	// ---- SQLite journal / archive ----
	var store *sqlite.Store
	if cfg.SQLitePath != "" {
		store, err = sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("sqlite open failed")
		}
		defer store.Close()
	}

	// ---- Candle source ----
	src, err := provider.Build(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("candle source")
	}
	retrying := source.WithRetry(src, cfg.FetchTimeout, cfg.FetchRetries)
	retrying.OnRetry = func(instrument string, tf model.Timeframe, err error) {
		prom.FetchRetries.Inc()
		log.Debug().Err(err).Str("instrument", instrument).Str("tf", tf.String()).Msg("retrying fetch")
	}

	// ---- Alert gate ----
	local := alertgate.NewMemoryStore(cfg.GateMaxKeys)
	local.OnEvict = func(n int) { prom.GateEvictions.Add(float64(n)) }
	local.OnCapEvict = func(string) { prom.GateCapEvictions.Inc() }
	var keyStore alertgate.KeyStore = local

	hub := gateway.NewHub(256)
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }
	hub.OnDrop = func() { prom.WSDrops.Inc() }
	defer hub.Close()

	sinks := []model.SignalSink{hub}
	var redisProbe, sqliteProbe metrics.Probe
	if store != nil {
		sinks = append(sinks, store)
		sqliteProbe = store.Ping
	}

	// ---- Redis (optional) ----
	if cfg.RedisAddr != "" {
		client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, gate keys stay in memory")
		} else {
			defer client.Close()
			cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
			cb.OnStateChange = func(from, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
				log.Warn().Str("component", "redis").Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker")
			}

			gs := redisstore.NewGateStore(client, cb, local)
			gs.OnFallback = func() { prom.RedisGateFallbacks.Inc() }
			keyStore = gs

			pub := redisstore.NewStreamPublisher(client, cb, cfg.SignalStream, 1000)
			pub.OnBuffer = func() { prom.RedisBufferedWrites.Inc() }
			sinks = append(sinks, pub)

			redisProbe = pingProbe(client)
		}
	}
	health.SetProbes(redisProbe, sqliteProbe)
	health.StartLivenessChecker(ctx, 10*time.Second)

	gate := alertgate.New(keyStore, cfg.AlertWindow, retention(timeframes, cfg.GateRetentionMargin))

	// ---- Notifier ----
	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}

	var archiver model.CandleArchiver
	if cfg.ArchiveCandles && store != nil && cfg.Provider != config.ProviderSQLite {
		archiver = store
	}

	sc, err := scanner.New(scanner.Config{
		Instruments:      cfg.Instruments,
		Timeframes:       timeframes,
		PollInterval:     cfg.PollInterval,
		Workers:          cfg.ScanWorkers,
		FetchBars:        cfg.FetchBars,
		WindowPrefilter:  cfg.WindowPrefilter,
		MarketHoursGuard: cfg.MarketHoursGuard,
	}, scanner.Deps{
		Source:    retrying,
		Evaluator: evaluator,
		Gate:      gate,
		Notifier:  notifiers,
		Sinks:     sinks,
		Archiver:  archiver,
		Metrics:   prom,
		Health:    health,
		GateKeys:  local.Len,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("scanner")
	}

	// ---- HTTP API ----
	var srv *http.Server
	if cfg.HTTPAddr != "" {
		deps := api.Deps{
			Health:     health,
			Gatherer:   reg,
			Gate:       gate,
			GateKeys:   local.Len,
			Timeframes: timeframes,
			WS:         hub.ServeWS,
		}
		if store != nil {
			deps.Signals = store
		}
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("http api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sc.Run(ctx)
	}()

	// ---- Graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")
	cancel()

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
		stop()
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn().Msg("scan tick still running, exiting anyway")
	}
	log.Info().Msg("stopped")
}

// retention keeps gate keys for the longest scanned bar plus margin.
func retention(tfs []model.Timeframe, margin time.Duration) time.Duration {
	var longest time.Duration
	for _, tf := range tfs {
		if d := tf.Duration(); d > longest {
			longest = d
		}
	}
	return longest + margin
}

func timeframeLabels(tfs []model.Timeframe) []string {
	out := make([]string, len(tfs))
	for i, tf := range tfs {
		out[i] = tf.String()
	}
	return out
}

func pingProbe(client *goredis.Client) metrics.Probe {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}
