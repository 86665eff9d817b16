// cmd/signalcheck evaluates one (instrument, timeframe) pair once and prints
// every check the decision was made on. Nothing is sent or journaled.
//
// Usage:
//
//	go run ./cmd/signalcheck --instrument=EUR/USD --tf=5m
//	go run ./cmd/signalcheck --instrument=EUR/USD --tf=2m --mode=reversal --json
//	go run ./cmd/signalcheck --db=data/signals.db --instrument=GBP/USD --tf=3m
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"fxscanner/config"
	"fxscanner/internal/logger"
	"fxscanner/internal/markethours"
	"fxscanner/internal/model"
	"fxscanner/internal/notification"
	"fxscanner/internal/scanner"
	"fxscanner/internal/source"
	"fxscanner/internal/source/provider"
	"fxscanner/internal/store/sqlite"
	"fxscanner/internal/strategy"
)

func main() {
	instrument := flag.String("instrument", "EUR/USD", "Instrument symbol (EUR/USD, or EXCHANGE:token for angel)")
	tfStr := flag.String("tf", "5m", "Timeframe to evaluate (1m, 2m, 3m, 5m, ...)")
	modeStr := flag.String("mode", "", "Force a rule set (follow|reversal); default from the mode table")
	bars := flag.Int("bars", 0, "Bars to fetch (0 = evaluator minimum + headroom)")
	dbPath := flag.String("db", "", "Evaluate from a SQLite candle archive instead of the configured provider")
	asJSON := flag.Bool("json", false, "Print the evaluation as JSON")
	flag.Parse()

	if *dbPath != "" {
		os.Setenv("CANDLE_PROVIDER", config.ProviderSQLite)
		os.Setenv("SQLITE_PATH", *dbPath)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Init("signalcheck", "info", true)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init("signalcheck", cfg.LogLevel, true)

	tf, err := model.ParseTimeframe(*tfStr)
	if err != nil {
		log.Fatal().Err(err).Msg("bad --tf")
	}
	evaluator, err := strategy.NewEvaluator(cfg.Strategy)
	if err != nil {
		log.Fatal().Err(err).Msg("strategy parameters")
	}
	mode, ok := cfg.Strategy.Modes.ModeFor(tf)
	if *modeStr != "" {
		if mode, err = model.ParseMode(*modeStr); err != nil {
			log.Fatal().Err(err).Msg("bad --mode")
		}
	} else if !ok {
		log.Fatal().Str("tf", tf.String()).Msg("no mode configured for timeframe; pass --mode")
	}

	var store *sqlite.Store
	if cfg.Provider == config.ProviderSQLite {
		if store, err = sqlite.Open(cfg.SQLitePath); err != nil {
			log.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer store.Close()
	}
	src, err := provider.Build(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("candle source")
	}
	src = source.WithRetry(src, cfg.FetchTimeout, cfg.FetchRetries)

	count := *bars
	if count <= 0 {
		count = evaluator.MinBars(tf) + scanner.DefaultHeadroom
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	candles, err := src.FetchCandles(ctx, *instrument, tf, count)
	if err == nil {
		err = model.ValidateCandles(candles)
	}
	if err != nil {
		log.Fatal().Err(err).Str("instrument", *instrument).Str("tf", tf.String()).Msg("fetch failed")
	}

	ev := evaluator.EvaluateMode(candles, tf, mode)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(ev)
		return
	}
	printEvaluation(*instrument, len(candles), ev, time.Now().UTC())
}

func printEvaluation(instrument string, n int, ev strategy.Evaluation, now time.Time) {
	fmt.Printf("%s %s  mode=%s  bars=%d  market: %s\n", instrument, ev.Timeframe, ev.Mode.Label(), n, markethours.StatusString(now))
	fmt.Printf("bar open %s  close %s  price %v\n",
		ev.BarTime.Format("2006-01-02 15:04"), ev.BarClose().Format("15:04:05"), ev.Price)
	fmt.Printf("state: %s\nreason: %s\n\n", ev.State, ev.Reason)

	for _, c := range ev.Checks {
		mark := "PASS"
		switch {
		case c.Skipped:
			mark = "SKIP"
		case !c.Passed:
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %-22s %s\n", mark, c.Name, formatValues(c.Values))
	}
	if len(ev.Context) > 0 {
		fmt.Printf("\ncontext: %s\n", formatValues(ev.Context))
	}
	if ev.HasSignal() {
		a := notification.FormatSignal(instrument, ev)
		fmt.Printf("\n%s\n%s\n", a.Title, a.Message)
	}
}

func formatValues(vals map[string]float64) string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.6g", k, vals[k])
	}
	return strings.Join(parts, " ")
}
