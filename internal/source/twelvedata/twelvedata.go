// Package twelvedata fetches FX candles from the Twelve Data REST API.
package twelvedata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"fxscanner/internal/model"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.twelvedata.com"

// maxOutputSize is the largest outputsize a single request may ask for.
const maxOutputSize = 5000

var intervals = map[model.Timeframe]string{
	1:  "1min",
	5:  "5min",
	15: "15min",
	30: "30min",
	45: "45min",
	60: "1h",
}

// Native lists the timeframes served directly; others are resampled from 1m.
func Native() []model.Timeframe {
	return []model.Timeframe{1, 5, 15, 30, 45, 60}
}

// Client implements model.CandleSource.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchCandles returns the newest count bars ascending. The last bar may be
// still forming.
func (c *Client) FetchCandles(ctx context.Context, instrument string, tf model.Timeframe, count int) ([]model.Candle, error) {
	interval, ok := intervals[tf]
	if !ok {
		return nil, fmt.Errorf("twelvedata: no native %s interval: %w", tf, model.ErrDataUnavailable)
	}
	if count > maxOutputSize {
		count = maxOutputSize
	}

	q := url.Values{}
	q.Set("symbol", instrument)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(count))
	q.Set("timezone", "UTC")
	q.Set("format", "JSON")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/time_series?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("twelvedata: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twelvedata: %s %s: %w", instrument, tf, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("twelvedata: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twelvedata: %s %s: status %d: %w", instrument, tf, resp.StatusCode, model.ErrDataUnavailable)
	}
	return parseTimeSeries(raw)
}

// parseTimeSeries decodes a time_series payload. values[] arrives newest
// first and is reversed.
func parseTimeSeries(raw []byte) ([]model.Candle, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("twelvedata: malformed JSON: %w", model.ErrDataUnavailable)
	}
	body := gjson.ParseBytes(raw)
	if body.Get("status").String() == "error" {
		return nil, fmt.Errorf("twelvedata: code %d: %s: %w",
			body.Get("code").Int(), body.Get("message").String(), model.ErrDataUnavailable)
	}

	values := body.Get("values").Array()
	if len(values) == 0 {
		return nil, fmt.Errorf("twelvedata: empty values: %w", model.ErrDataUnavailable)
	}

	out := make([]model.Candle, len(values))
	for i, v := range values {
		ts, err := parseTime(v.Get("datetime").String())
		if err != nil {
			return nil, fmt.Errorf("twelvedata: row %d: %v: %w", i, err, model.ErrDataUnavailable)
		}
		c := model.Candle{TS: ts}
		for _, f := range []struct {
			key string
			dst *float64
		}{
			{"open", &c.Open}, {"high", &c.High}, {"low", &c.Low}, {"close", &c.Close},
		} {
			field := v.Get(f.key)
			if !field.Exists() {
				return nil, fmt.Errorf("twelvedata: row %d: missing %s: %w", i, f.key, model.ErrDataUnavailable)
			}
			*f.dst = field.Float()
		}
		c.Volume = v.Get("volume").Float()
		out[len(values)-1-i] = c
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad datetime %q", s)
}
