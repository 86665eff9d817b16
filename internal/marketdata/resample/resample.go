// Package resample aggregates 1-minute candles into wider timeframe buckets.
// Buckets align to the timeframe boundary in UTC (ts - ts%tf), the same
// alignment the providers use for native intervals.
package resample

import (
	"time"

	"fxscanner/internal/model"
)

// Aggregate folds ascending 1-minute candles into tf buckets.
//
// A leading bucket whose first minute is not on the boundary is dropped,
// since its open would not be the true bucket open. The trailing bucket is
// kept even when incomplete: it is the forming bar. Gaps inside a bucket are
// merged over; a bucket with no source minutes is simply absent.
func Aggregate(candles []model.Candle, tf model.Timeframe) []model.Candle {
	if tf <= 1 || len(candles) == 0 {
		return candles
	}
	width := int64(tf.Duration() / time.Second)

	out := make([]model.Candle, 0, len(candles)/int(tf)+1)
	var (
		cur     model.Candle
		bucket  int64
		started bool
	)
	for i, c := range candles {
		ts := c.TS.Unix()
		b := ts - (ts % width)

		if i == 0 && ts != b {
			// skip forward to the first aligned bucket
			bucket, started = b, false
			continue
		}
		if started && b == bucket {
			if c.High > cur.High {
				cur.High = c.High
			}
			if c.Low < cur.Low {
				cur.Low = c.Low
			}
			cur.Close = c.Close
			cur.Volume += c.Volume
			continue
		}
		if !started && b == bucket && i > 0 {
			// still inside the dropped leading bucket
			continue
		}
		if started {
			out = append(out, cur)
		}
		bucket, started = b, true
		cur = model.Candle{
			TS:     time.Unix(b, 0).UTC(),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	if started {
		out = append(out, cur)
	}
	return out
}

// SourceBars is how many 1-minute bars cover count tf bars plus one
// possibly dropped leading bucket.
func SourceBars(count int, tf model.Timeframe) int {
	if tf <= 1 {
		return count
	}
	return (count + 1) * int(tf)
}
