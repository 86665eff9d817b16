package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// AlertKey identifies one emitted alert. At most one alert is sent per key.
type AlertKey struct {
	Instrument string
	Timeframe  Timeframe
	BarClose   time.Time
}

// String returns "instrument|tf|unix" for use as a store key.
func (k AlertKey) String() string {
	return k.Instrument + "|" + k.Timeframe.String() + "|" + strconv.FormatInt(k.BarClose.Unix(), 10)
}

// SignalRecord is an emitted alert as journaled and published.
type SignalRecord struct {
	ID         string          `json:"id"`
	Instrument string          `json:"instrument"`
	Timeframe  Timeframe       `json:"timeframe"`
	Mode       Mode            `json:"mode"`
	Direction  Direction       `json:"direction"`
	Price      float64         `json:"price"`
	BarOpen    time.Time       `json:"bar_open"`
	BarClose   time.Time       `json:"bar_close"`
	Reason     string          `json:"reason"`
	Checks     json.RawMessage `json:"checks"`
	EmittedAt  time.Time       `json:"emitted_at"`
	Notified   bool            `json:"notified"`
}

// JSON returns the JSON-encoded record (ignoring errors, all fields are plain).
func (r *SignalRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
