// Package angel fetches candles through Angel One SmartAPI historical data.
// Instruments are written "EXCHANGE:symboltoken", e.g. "CDS:1".
package angel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"fxscanner/internal/model"
	"fxscanner/pkg/smartconnect"
)

// IST is the zone SmartAPI expects request dates in.
var IST = time.FixedZone("IST", 5*3600+30*60)

var intervals = map[model.Timeframe]string{
	1:  "ONE_MINUTE",
	3:  "THREE_MINUTE",
	5:  "FIVE_MINUTE",
	10: "TEN_MINUTE",
	15: "FIFTEEN_MINUTE",
	30: "THIRTY_MINUTE",
	60: "ONE_HOUR",
}

// Native lists the timeframes served directly.
func Native() []model.Timeframe {
	return []model.Timeframe{1, 3, 5, 10, 15, 30, 60}
}

// Credentials for the password + TOTP login.
type Credentials struct {
	ClientCode string
	Password   string
	TOTPSecret string
}

// Source implements model.CandleSource over a SmartAPI session. It logs in
// lazily and logs in again once when the token is rejected.
type Source struct {
	sc    *smartconnect.SmartConnect
	creds Credentials
	now   func() time.Time
	log   zerolog.Logger

	mu       sync.Mutex
	loggedIn bool
}

func New(sc *smartconnect.SmartConnect, creds Credentials) *Source {
	return &Source{
		sc:    sc,
		creds: creds,
		now:   time.Now,
		log:   log.With().Str("component", "angel").Logger(),
	}
}

func (s *Source) ensureSession(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedIn && !force {
		return nil
	}
	code, err := totp.GenerateCode(s.creds.TOTPSecret, s.now())
	if err != nil {
		return fmt.Errorf("angel: totp: %w", err)
	}
	if err := s.sc.Login(ctx, s.creds.ClientCode, s.creds.Password, code); err != nil {
		s.loggedIn = false
		return fmt.Errorf("angel: %w", err)
	}
	s.loggedIn = true
	return nil
}

// lookback spans count bars with room for weekend and session gaps, within
// the per-request day limit of one-minute data.
func lookback(tf model.Timeframe, count int) time.Duration {
	d := time.Duration(count) * tf.Duration() * 3
	if d < 72*time.Hour {
		d = 72 * time.Hour
	}
	if d > 30*24*time.Hour {
		d = 30 * 24 * time.Hour
	}
	return d
}

func (s *Source) FetchCandles(ctx context.Context, instrument string, tf model.Timeframe, count int) ([]model.Candle, error) {
	interval, ok := intervals[tf]
	if !ok {
		return nil, fmt.Errorf("angel: no native %s interval: %w", tf, model.ErrDataUnavailable)
	}
	exchange, token, ok := strings.Cut(instrument, ":")
	if !ok || exchange == "" || token == "" {
		return nil, fmt.Errorf("angel: instrument %q is not EXCHANGE:token: %w", instrument, model.ErrDataUnavailable)
	}

	if err := s.ensureSession(ctx, false); err != nil {
		return nil, err
	}

	now := s.now().In(IST)
	req := smartconnect.CandleRequest{
		Exchange:    exchange,
		SymbolToken: token,
		Interval:    interval,
		From:        now.Add(-lookback(tf, count)),
		To:          now,
	}
	data, err := s.sc.GetCandleData(ctx, req)
	if errors.Is(err, smartconnect.ErrTokenExpired) {
		s.log.Warn().Msg("session expired, logging in again")
		if err := s.ensureSession(ctx, true); err != nil {
			return nil, err
		}
		data, err = s.sc.GetCandleData(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("angel: %s %s: %w: %v", instrument, tf, model.ErrDataUnavailable, err)
	}

	out, err := parseCandles(data)
	if err != nil {
		return nil, err
	}
	if len(out) > count {
		out = out[len(out)-count:]
	}
	return out, nil
}

// parseCandles reads rows of [timestamp, open, high, low, close, volume].
func parseCandles(data gjson.Result) ([]model.Candle, error) {
	rows := data.Array()
	if len(rows) == 0 {
		return nil, fmt.Errorf("angel: empty candle data: %w", model.ErrDataUnavailable)
	}
	out := make([]model.Candle, 0, len(rows))
	for i, r := range rows {
		cols := r.Array()
		if len(cols) < 5 {
			return nil, fmt.Errorf("angel: row %d has %d columns: %w", i, len(cols), model.ErrDataUnavailable)
		}
		ts, err := time.Parse(time.RFC3339, cols[0].String())
		if err != nil {
			return nil, fmt.Errorf("angel: row %d: %v: %w", i, err, model.ErrDataUnavailable)
		}
		c := model.Candle{
			TS:    ts.UTC(),
			Open:  cols[1].Float(),
			High:  cols[2].Float(),
			Low:   cols[3].Float(),
			Close: cols[4].Float(),
		}
		if len(cols) > 5 {
			c.Volume = cols[5].Float()
		}
		out = append(out, c)
	}
	return out, nil
}
