// Package api exposes the scanner over HTTP: health, Prometheus metrics,
// the signal journal, alert-window status and the live websocket feed.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"fxscanner/internal/model"
)

// WindowChecker is the part of the alert gate the status endpoint reads.
type WindowChecker interface {
	Window() time.Duration
	InWindow(barClose, now time.Time) bool
}

// Deps are the components the router serves. Nil members disable their
// routes.
type Deps struct {
	Health     http.Handler
	Gatherer   prometheus.Gatherer
	Signals    model.SignalReader
	Gate       WindowChecker
	GateKeys   func() int
	Timeframes []model.Timeframe
	WS         http.HandlerFunc
	Now        func() time.Time
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Now == nil {
		d.Now = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	if d.Health != nil {
		router.GET("/healthz", gin.WrapH(d.Health))
	}
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.WS != nil {
		router.GET("/ws", gin.WrapF(d.WS))
	}

	v1 := router.Group("/api/v1")
	if d.Signals != nil {
		v1.GET("/signals", handleSignals(d.Signals))
	}
	if d.Gate != nil {
		v1.GET("/gate", handleGate(d))
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	l := log.With().Str("component", "api").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// handleSignals lists journaled signals newest first.
//
//	GET /api/v1/signals?instrument=EUR/USD&since=2025-03-03T00:00:00Z&limit=50
func handleSignals(reader model.SignalReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var since time.Time
		if s := c.Query("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				errorResponse(c, http.StatusBadRequest, "since must be RFC3339")
				return
			}
			since = t
		}
		limit := 100
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 1000 {
				errorResponse(c, http.StatusBadRequest, "limit must be in [1, 1000]")
				return
			}
			limit = n
		}

		recs, err := reader.RecentSignals(c.Request.Context(), c.Query("instrument"), since, limit)
		if err != nil {
			if errors.Is(err, c.Request.Context().Err()) {
				return
			}
			log.Error().Err(err).Str("component", "api").Msg("list signals")
			errorResponse(c, http.StatusInternalServerError, "signal journal unavailable")
			return
		}
		if recs == nil {
			recs = []model.SignalRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"signals": recs, "count": len(recs)})
	}
}

type windowStatus struct {
	Timeframe string    `json:"tf"`
	BarClose  time.Time `json:"bar_close"`
	InWindow  bool      `json:"in_window"`
	OpensIn   float64   `json:"opens_in_seconds"`
}

// handleGate reports, per scanned timeframe, the current bar's close and
// whether alerts for it are admissible right now.
func handleGate(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := d.Now().UTC()
		window := d.Gate.Window()

		tfs := make([]windowStatus, 0, len(d.Timeframes))
		for _, tf := range d.Timeframes {
			closeAt := tf.CurrentBarClose(now)
			opens := closeAt.Add(-window).Sub(now).Seconds()
			if opens < 0 {
				opens = 0
			}
			tfs = append(tfs, windowStatus{
				Timeframe: tf.String(),
				BarClose:  closeAt,
				InWindow:  d.Gate.InWindow(closeAt, now),
				OpensIn:   opens,
			})
		}

		body := gin.H{
			"now":            now,
			"window_seconds": window.Seconds(),
			"timeframes":     tfs,
		}
		if d.GateKeys != nil {
			body["retained_keys"] = d.GateKeys()
		}
		c.JSON(http.StatusOK, body)
	}
}
