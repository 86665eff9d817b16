package notification

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fxscanner/internal/model"
	"fxscanner/internal/strategy"
)

// priceDecimals picks display precision from the quote size: JPY-style
// quotes carry 3 places, the rest 5.
func priceDecimals(price float64) int32 {
	if price >= 20 {
		return 3
	}
	return 5
}

// FormatSignal renders an emitted evaluation as an alert.
//
//	📊 SIGNAL (BUY)
//	Pair: EUR/USD
//	Mode: trend-follow
//	TF: 1m
//	Price: 1.08425
//	Bar close: 2025-03-03 10:01:00 UTC
//	Reason: 1m trend-follow BUY - all conditions met
func FormatSignal(instrument string, ev strategy.Evaluation) Alert {
	price := decimal.NewFromFloat(ev.Price).StringFixed(priceDecimals(ev.Price))

	var b strings.Builder
	fmt.Fprintf(&b, "Pair: %s\n", instrument)
	fmt.Fprintf(&b, "Mode: %s\n", ev.Mode.Label())
	fmt.Fprintf(&b, "TF: %s\n", ev.Timeframe)
	fmt.Fprintf(&b, "Price: %s\n", price)
	fmt.Fprintf(&b, "Bar close: %s\n", ev.BarClose().UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Reason: %s", ev.Reason)

	return Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("📊 SIGNAL (%s)", ev.Signal),
		Message: b.String(),
	}
}

// FormatRecord is FormatSignal for a journaled record.
func FormatRecord(rec model.SignalRecord) Alert {
	return FormatSignal(rec.Instrument, strategy.Evaluation{
		Mode:      rec.Mode,
		Timeframe: rec.Timeframe,
		Signal:    rec.Direction,
		Price:     rec.Price,
		BarTime:   rec.BarOpen,
		Reason:    rec.Reason,
	})
}
