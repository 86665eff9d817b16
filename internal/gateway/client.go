package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	filterMu    sync.RWMutex
	instruments map[string]bool // nil = everything
}

func newClient(conn *websocket.Conn, hub *Hub, instruments map[string]bool) *Client {
	return &Client{
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		hub:         hub,
		instruments: instruments,
	}
}

func (c *Client) wants(instrument string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.instruments == nil || c.instruments[instrument]
}

// queue enqueues without blocking; the caller holds the hub lock.
func (c *Client) queue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// coalesce queued frames, newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles client control messages:
//
//	{"type":"SUBSCRIBE","instruments":["EUR/USD"]}  replace the filter ([] = all)
//	{"ping":<ms>}                                     answered with a pong frame
func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var in struct {
			Type        string   `json:"type"`
			Ping        int64    `json:"ping"`
			Instruments []string `json:"instruments"`
		}
		if json.Unmarshal(msg, &in) != nil {
			continue
		}

		switch {
		case in.Type == "SUBSCRIBE":
			var set map[string]bool
			if len(in.Instruments) > 0 {
				set = make(map[string]bool, len(in.Instruments))
				for _, s := range in.Instruments {
					set[s] = true
				}
			}
			c.filterMu.Lock()
			c.instruments = set
			c.filterMu.Unlock()
		case in.Ping > 0:
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      in.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.hub.mu.RLock()
			if c.hub.clients[c] {
				c.queue(pong)
			}
			c.hub.mu.RUnlock()
		}
	}
}
