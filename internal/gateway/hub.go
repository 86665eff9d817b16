// Package gateway fans emitted signals out to dashboard websocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fxscanner/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Envelope is the frame every client receives.
type Envelope struct {
	Type string             `json:"type"` // "signal"
	Seq  int64              `json:"seq"`
	TS   time.Time          `json:"ts"`
	Data model.SignalRecord `json:"data"`
}

// Hub tracks websocket clients and implements model.SignalSink.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	latest  map[string]replayEntry // instrument|tf -> newest envelope
	replay  *ReplayBuffer
	now     func() time.Time
	log     zerolog.Logger

	// Metrics hooks (optional)
	OnClientCount func(n int)
	OnDrop        func()
}

// NewHub keeps the last replayCap envelopes for reconnect backfill.
func NewHub(replayCap int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]replayEntry),
		replay:  NewReplayBuffer(replayCap),
		now:     time.Now,
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Name implements model.SignalSink.
func (h *Hub) Name() string { return "websocket-hub" }

// PublishSignal broadcasts rec to every subscribed client. Slow clients
// whose queue is full miss the frame; they can recover it from the replay
// buffer on reconnect.
func (h *Hub) PublishSignal(_ context.Context, rec model.SignalRecord) error {
	h.mu.Lock()
	h.seq++
	env, err := json.Marshal(Envelope{Type: "signal", Seq: h.seq, TS: h.now().UTC(), Data: rec})
	if err != nil {
		h.seq--
		h.mu.Unlock()
		return err
	}
	h.replay.Push(h.seq, rec.Instrument, env)
	h.latest[rec.Instrument+"|"+rec.Timeframe.String()] = replayEntry{Seq: h.seq, Key: rec.Instrument, Data: env}

	for c := range h.clients {
		if !c.wants(rec.Instrument) {
			continue
		}
		select {
		case c.send <- env:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
	h.mu.Unlock()
	return nil
}

// ServeWS upgrades the request. Query parameters:
//
//	instruments  comma-separated filter (default all)
//	since_seq    replay buffered envelopes after this sequence
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	c := newClient(conn, h, splitInstruments(r.URL.Query().Get("instruments")))
	conn.EnableWriteCompression(true)

	// register and queue backfill under one lock so no broadcast slips between
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	if s := r.URL.Query().Get("since_seq"); s != "" {
		if since, err := strconv.ParseInt(s, 10, 64); err == nil {
			for _, env := range h.replay.After(since, c.wants) {
				c.queue(env)
			}
		}
	} else {
		snapshot := make([]replayEntry, 0, len(h.latest))
		for _, e := range h.latest {
			if c.wants(e.Key) {
				snapshot = append(snapshot, e)
			}
		}
		sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Seq < snapshot[j].Seq })
		for _, e := range snapshot {
			c.queue(e.Data)
		}
	}
	h.mu.Unlock()

	h.log.Info().Int("clients", count).Msg("ws client connected")
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	go c.writePump()
	go c.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Int("clients", count).Msg("ws client disconnected")
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the sequence of the newest broadcast.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.conn.Close()
	}
}

func splitInstruments(s string) map[string]bool {
	if s == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out[p] = true
		}
	}
	return out
}
