// Package source wraps model.CandleSource implementations with the
// behaviour the scanner expects from any provider: bounded per-attempt
// timeouts, limited retries and synthesis of timeframes the provider does
// not serve natively.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"fxscanner/internal/marketdata/resample"
	"fxscanner/internal/model"
)

// Retrying bounds each fetch attempt with a timeout and retries failures
// at a constant interval. Every error is retried, including unavailable
// payloads, since providers report transient outages that way.
type Retrying struct {
	src     model.CandleSource
	timeout time.Duration
	retries int
	backoff time.Duration

	// OnRetry is called before every retry (optional).
	OnRetry func(instrument string, tf model.Timeframe, err error)
}

// WithRetry wraps src. timeout <= 0 disables the per-attempt deadline;
// retries < 0 is treated as 0.
func WithRetry(src model.CandleSource, timeout time.Duration, retries int) *Retrying {
	if retries < 0 {
		retries = 0
	}
	return &Retrying{src: src, timeout: timeout, retries: retries, backoff: 250 * time.Millisecond}
}

func (r *Retrying) FetchCandles(ctx context.Context, instrument string, tf model.Timeframe, count int) ([]model.Candle, error) {
	var (
		candles []model.Candle
		attempt int
	)
	op := func() error {
		attempt++
		var err error
		candles, err = r.attempt(ctx, instrument, tf, count)
		if err != nil {
			log.Debug().Str("component", "source").Str("instrument", instrument).
				Stringer("tf", tf).Int("attempt", attempt).Err(err).Msg("fetch failed")
		}
		return err
	}
	notify := func(err error, _ time.Duration) {
		if r.OnRetry != nil {
			r.OnRetry(instrument, tf, err)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.backoff), uint64(r.retries)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		return candles, nil
	case ctx.Err() != nil:
		return nil, fmt.Errorf("fetch %s %s: %w", instrument, tf, ctx.Err())
	case errors.Is(err, model.ErrDataUnavailable):
		return nil, err
	}
	return nil, fmt.Errorf("fetch %s %s after %d attempts: %w: %v",
		instrument, tf, attempt, model.ErrDataUnavailable, err)
}

func (r *Retrying) attempt(ctx context.Context, instrument string, tf model.Timeframe, count int) ([]model.Candle, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.src.FetchCandles(ctx, instrument, tf, count)
}

// Resampling serves timeframes the wrapped provider lacks by fetching
// 1-minute bars and aggregating them.
type Resampling struct {
	src    model.CandleSource
	native map[model.Timeframe]bool
}

// NewResampling wraps src, which serves the native timeframes directly.
func NewResampling(src model.CandleSource, native ...model.Timeframe) *Resampling {
	set := make(map[model.Timeframe]bool, len(native))
	for _, tf := range native {
		set[tf] = true
	}
	return &Resampling{src: src, native: set}
}

// Native reports whether tf is fetched without resampling.
func (r *Resampling) Native(tf model.Timeframe) bool { return r.native[tf] }

func (r *Resampling) FetchCandles(ctx context.Context, instrument string, tf model.Timeframe, count int) ([]model.Candle, error) {
	if r.native[tf] {
		return r.src.FetchCandles(ctx, instrument, tf, count)
	}
	if !r.native[1] {
		return nil, fmt.Errorf("%s not served and no 1m base: %w", tf, model.ErrDataUnavailable)
	}

	base, err := r.src.FetchCandles(ctx, instrument, 1, resample.SourceBars(count, tf))
	if err != nil {
		return nil, err
	}
	out := resample.Aggregate(base, tf)
	if len(out) == 0 {
		return nil, fmt.Errorf("resample %s %s: no complete bucket: %w", instrument, tf, model.ErrDataUnavailable)
	}
	if len(out) > count {
		out = out[len(out)-count:]
	}
	return out, nil
}
