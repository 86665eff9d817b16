// Package scanner runs the polling loop: every tick it evaluates each
// (instrument, timeframe) pair and routes admitted signals to the notifier
// and the signal sinks.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fxscanner/internal/alertgate"
	"fxscanner/internal/logger"
	"fxscanner/internal/markethours"
	"fxscanner/internal/metrics"
	"fxscanner/internal/model"
	"fxscanner/internal/notification"
	"fxscanner/internal/strategy"
)

// DefaultHeadroom is added to the evaluator's minimum window when no fixed
// fetch size is configured.
const DefaultHeadroom = 100

// Config is the scan scope and pacing.
type Config struct {
	Instruments      []string
	Timeframes       []model.Timeframe
	PollInterval     time.Duration
	Workers          int
	FetchBars        int // 0 means MinBars(tf) + DefaultHeadroom
	WindowPrefilter  bool
	MarketHoursGuard bool
}

// Evaluator decides a candle window. *strategy.Evaluator implements it.
type Evaluator interface {
	Evaluate(candles []model.Candle, tf model.Timeframe) strategy.Evaluation
	MinBars(tf model.Timeframe) int
}

// Deps are the collaborators of the scan loop. Source, Evaluator and Gate
// are required.
type Deps struct {
	Source    model.CandleSource
	Evaluator Evaluator
	Gate      *alertgate.Gate
	Notifier  notification.Notifier
	Sinks     []model.SignalSink
	Archiver  model.CandleArchiver
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	GateKeys  func() int
	Now       func() time.Time
}

// Scanner evaluates the configured pairs on every tick.
type Scanner struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
}

// New validates the wiring and returns a scanner.
func New(cfg Config, deps Deps) (*Scanner, error) {
	if deps.Source == nil || deps.Evaluator == nil || deps.Gate == nil {
		return nil, errors.New("scanner: source, evaluator and gate are required")
	}
	if len(cfg.Instruments) == 0 || len(cfg.Timeframes) == 0 {
		return nil, errors.New("scanner: no instruments or timeframes to scan")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewLogNotifier()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Scanner{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "scanner").Logger(),
	}, nil
}

// Run ticks every PollInterval until ctx is cancelled. A tick in progress
// is allowed to finish.
func (s *Scanner) Run(ctx context.Context) error {
	s.log.Info().
		Strs("instruments", s.cfg.Instruments).
		Int("timeframes", len(s.cfg.Timeframes)).
		Dur("poll", s.cfg.PollInterval).
		Int("workers", s.cfg.Workers).
		Msg("scanner started")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scanner stopped")
			return nil
		case <-ticker.C:
			s.Tick(context.WithoutCancel(ctx), s.deps.Now())
		}
	}
}

// Tick evaluates every pair once. Pairs run concurrently up to the worker
// limit; a failing pair never affects the others.
func (s *Scanner) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	now = now.UTC()
	traceID := logger.GenerateTraceID("tick", now)
	ctx = logger.WithTraceID(ctx, traceID)
	m := s.deps.Metrics

	if s.cfg.MarketHoursGuard {
		open := markethours.IsMarketOpen(now)
		if s.deps.Health != nil {
			s.deps.Health.SetMarketOpen(open)
		}
		if open {
			m.MarketState.Set(1)
		} else {
			m.MarketState.Set(0)
			s.finishTick(now, start)
			return
		}
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, inst := range s.cfg.Instruments {
		for _, tf := range s.cfg.Timeframes {
			inst, tf := inst, tf
			g.Go(func() error {
				s.scanPair(ctx, inst, tf, now)
				return nil
			})
		}
	}
	g.Wait()
	s.finishTick(now, start)
}

func (s *Scanner) finishTick(now, start time.Time) {
	m := s.deps.Metrics
	m.TicksTotal.Inc()
	m.TickDuration.Observe(time.Since(start).Seconds())
	if s.deps.GateKeys != nil {
		m.GateKeys.Set(float64(s.deps.GateKeys()))
	}
	if s.deps.Health != nil {
		s.deps.Health.SetLastTickTime(now)
	}
}

// Result is the outcome of one pair scan, returned for diagnostics.
type Result struct {
	Instrument string
	Timeframe  model.Timeframe
	Skipped    bool
	Err        error
	Evaluation *strategy.Evaluation
	Decision   alertgate.Decision
	Record     *model.SignalRecord
}

// scanPair runs one pair inside the tick. A panic is recovered and counted
// so it cannot take down the other pairs or the process.
func (s *Scanner) scanPair(ctx context.Context, instrument string, tf model.Timeframe, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.deps.Metrics.PairPanics.Inc()
			l := logger.Ctx(ctx, s.log)
			l.Error().
				Str("instrument", instrument).
				Str("tf", tf.String()).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("pair scan panicked")
		}
	}()

	res := s.ScanPair(ctx, instrument, tf, now)
	if res.Err != nil {
		l := logger.Ctx(ctx, s.log)
		l.Warn().Err(res.Err).Str("instrument", instrument).Str("tf", tf.String()).Msg("pair skipped")
	}
}

// ScanPair runs fetch, evaluation, gating and delivery for one pair.
func (s *Scanner) ScanPair(ctx context.Context, instrument string, tf model.Timeframe, now time.Time) Result {
	res := Result{Instrument: instrument, Timeframe: tf}
	m := s.deps.Metrics
	l := logger.Ctx(ctx, s.log).With().Str("instrument", instrument).Str("tf", tf.String()).Logger()

	if s.cfg.WindowPrefilter && !s.deps.Gate.InWindow(tf.CurrentBarClose(now), now) {
		m.WindowSkips.Inc()
		res.Skipped = true
		return res
	}

	start := time.Now()
	defer func() { m.PairDuration.Observe(time.Since(start).Seconds()) }()

	candles, err := s.deps.Source.FetchCandles(ctx, instrument, tf, s.fetchCount(tf))
	if err == nil {
		err = model.ValidateCandles(candles)
	}
	if err != nil {
		m.FetchErrors.WithLabelValues(fetchReason(err)).Inc()
		res.Err = err
		return res
	}
	last := candles[len(candles)-1]
	m.CandleAge.WithLabelValues(tf.String()).Set(now.Sub(tf.BarClose(last.TS)).Seconds())

	if s.deps.Archiver != nil {
		if err := s.deps.Archiver.ArchiveCandles(ctx, instrument, tf, candles); err != nil {
			l.Warn().Err(err).Msg("archive candles")
		}
	}

	ev := s.deps.Evaluator.Evaluate(candles, tf)
	res.Evaluation = &ev
	m.Evaluations.WithLabelValues(tf.String(), string(ev.Mode), string(ev.State)).Inc()
	l.Debug().Str("state", string(ev.State)).Str("reason", ev.Reason).Msg("evaluated")
	if !ev.HasSignal() {
		res.Decision = alertgate.DecisionNoSignal
		return res
	}

	decision, err := s.deps.Gate.Admit(ctx, instrument, &ev, now)
	res.Decision = decision
	m.GateDecisions.WithLabelValues(string(decision)).Inc()
	if err != nil {
		res.Err = err
		return res
	}
	if decision != alertgate.DecisionEmit {
		l.Debug().Str("decision", string(decision)).Msg("signal not admitted")
		return res
	}

	rec := s.deliver(ctx, l, instrument, ev, now)
	res.Record = &rec
	return res
}

// deliver notifies and then hands the record to every sink. The gate key
// stays marked whether or not delivery succeeds.
func (s *Scanner) deliver(ctx context.Context, l zerolog.Logger, instrument string, ev strategy.Evaluation, now time.Time) model.SignalRecord {
	m := s.deps.Metrics
	m.SignalsEmitted.WithLabelValues(ev.Timeframe.String(), string(ev.Signal)).Inc()

	notified := true
	if err := s.deps.Notifier.Send(ctx, notification.FormatSignal(instrument, ev)); err != nil {
		notified = false
		m.NotifyFailures.Inc()
		l.Error().Err(err).Msg("notify failed")
	}

	checks, err := json.Marshal(ev.Checks)
	if err != nil {
		checks = nil
	}
	rec := model.SignalRecord{
		ID:         uuid.NewString(),
		Instrument: instrument,
		Timeframe:  ev.Timeframe,
		Mode:       ev.Mode,
		Direction:  ev.Signal,
		Price:      ev.Price,
		BarOpen:    ev.BarTime,
		BarClose:   ev.BarClose(),
		Reason:     ev.Reason,
		Checks:     checks,
		EmittedAt:  now,
		Notified:   notified,
	}

	for _, sink := range s.deps.Sinks {
		if err := sink.PublishSignal(ctx, rec); err != nil {
			m.SinkFailures.WithLabelValues(sink.Name()).Inc()
			l.Error().Err(err).Str("sink", sink.Name()).Msg("publish signal")
		}
	}
	if s.deps.Health != nil {
		s.deps.Health.SetLastSignalTime(now)
	}

	l.Info().
		Str("direction", string(rec.Direction)).
		Str("mode", string(rec.Mode)).
		Float64("price", rec.Price).
		Time("bar_close", rec.BarClose).
		Bool("notified", notified).
		Msg("signal emitted")
	return rec
}

func (s *Scanner) fetchCount(tf model.Timeframe) int {
	if s.cfg.FetchBars > 0 {
		return s.cfg.FetchBars
	}
	return s.deps.Evaluator.MinBars(tf) + DefaultHeadroom
}

func fetchReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, model.ErrDataUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
