package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fxscanner/internal/model"
)

func startHub(t *testing.T, h *Hub) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelopes reads one websocket frame and splits coalesced envelopes.
func readEnvelopes(t *testing.T, conn *websocket.Conn) []Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out []Envelope
	for _, line := range strings.Split(string(msg), "\n") {
		var e Envelope
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad envelope %q: %v", line, err)
		}
		out = append(out, e)
	}
	return out
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func record(inst string, tf model.Timeframe) model.SignalRecord {
	open := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	return model.SignalRecord{
		ID: inst + tf.String(), Instrument: inst, Timeframe: tf, Mode: model.ModeTrendFollow,
		Direction: model.DirBuy, Price: 1.1, BarOpen: open, BarClose: tf.BarClose(open),
	}
}

func TestHub_BroadcastsToClients(t *testing.T) {
	h := NewHub(10)
	url := startHub(t, h)
	a := dial(t, url)
	b := dial(t, url+"?instruments=USD/JPY")
	waitClients(t, h, 2)

	h.PublishSignal(context.Background(), record("EUR/USD", 1))
	h.PublishSignal(context.Background(), record("USD/JPY", 5))

	var got []Envelope
	for len(got) < 2 {
		got = append(got, readEnvelopes(t, a)...)
	}
	if got[0].Seq != 1 || got[0].Data.Instrument != "EUR/USD" || got[1].Seq != 2 || got[0].Type != "signal" {
		t.Errorf("client a got %+v", got)
	}

	filtered := readEnvelopes(t, b)
	if len(filtered) != 1 || filtered[0].Data.Instrument != "USD/JPY" {
		t.Errorf("filtered client got %+v", filtered)
	}
}

func TestHub_ReplaySinceSeq(t *testing.T) {
	h := NewHub(10)
	url := startHub(t, h)
	for _, inst := range []string{"EUR/USD", "GBP/USD", "USD/JPY"} {
		h.PublishSignal(context.Background(), record(inst, 1))
	}

	c := dial(t, url+"?since_seq=1")
	var got []Envelope
	for len(got) < 2 {
		got = append(got, readEnvelopes(t, c)...)
	}
	if got[0].Seq != 2 || got[1].Seq != 3 {
		t.Errorf("replayed seqs %d,%d, want 2,3", got[0].Seq, got[1].Seq)
	}

	jpy := readEnvelopes(t, dial(t, url+"?since_seq=0&instruments=USD/JPY"))
	if len(jpy) != 1 || jpy[0].Seq != 3 {
		t.Errorf("filtered replay = %+v", jpy)
	}
}

func TestHub_InitialLatestSnapshot(t *testing.T) {
	h := NewHub(10)
	url := startHub(t, h)
	h.PublishSignal(context.Background(), record("EUR/USD", 1))
	second := record("EUR/USD", 1)
	second.Direction = model.DirSell
	h.PublishSignal(context.Background(), second)

	got := readEnvelopes(t, dial(t, url))
	if len(got) != 1 || got[0].Seq != 2 || got[0].Data.Direction != model.DirSell {
		t.Errorf("snapshot = %+v, want only newest per pair", got)
	}
}

func TestHub_SubscribeAndPing(t *testing.T) {
	h := NewHub(10)
	url := startHub(t, h)
	c := dial(t, url)
	waitClients(t, h, 1)

	c.WriteJSON(map[string]any{"type": "SUBSCRIBE", "instruments": []string{"GBP/USD"}})
	c.WriteJSON(map[string]any{"ping": 123})

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := c.ReadMessage()
	if err != nil || !strings.Contains(string(msg), `"type":"pong"`) {
		t.Fatalf("pong: %s %v", msg, err)
	}

	// SUBSCRIBE was processed before the ping, so the filter is in place
	h.PublishSignal(context.Background(), record("EUR/USD", 1))
	h.PublishSignal(context.Background(), record("GBP/USD", 1))
	got := readEnvelopes(t, c)
	if len(got) != 1 || got[0].Data.Instrument != "GBP/USD" {
		t.Errorf("filtered got %+v", got)
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h := NewHub(10)
	counts := make(chan int, 4)
	h.OnClientCount = func(n int) { counts <- n }
	url := startHub(t, h)

	c := dial(t, url)
	waitClients(t, h, 1)
	c.Close()
	waitClients(t, h, 0)

	if n := <-counts; n != 1 {
		t.Errorf("first count = %d", n)
	}
	if n := <-counts; n != 0 {
		t.Errorf("second count = %d", n)
	}
	if err := h.PublishSignal(context.Background(), record("EUR/USD", 1)); err != nil {
		t.Errorf("publish with no clients: %v", err)
	}
}

func TestReplayBuffer_After(t *testing.T) {
	rb := NewReplayBuffer(100)
	for i := int64(1); i <= 10; i++ {
		rb.Push(i, "EUR/USD", []byte{byte(i)})
	}
	got := rb.After(7, nil)
	if len(got) != 3 || got[0][0] != 8 || got[2][0] != 10 {
		t.Errorf("After(7) = %v", got)
	}
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5)
	for i := int64(1); i <= 8; i++ {
		rb.Push(i, "EUR/USD", []byte{byte(i)})
	}
	if rb.Len() != 5 || rb.Oldest() != 4 {
		t.Fatalf("Len=%d Oldest=%d, want 5 and 4", rb.Len(), rb.Oldest())
	}
	if got := rb.After(0, nil); len(got) != 5 || got[4][0] != 8 {
		t.Errorf("After(0) = %v", got)
	}
}

func TestReplayBuffer_KeyFilter(t *testing.T) {
	rb := NewReplayBuffer(10)
	rb.Push(1, "EUR/USD", []byte("a"))
	rb.Push(2, "USD/JPY", []byte("b"))
	got := rb.After(0, func(k string) bool { return k == "USD/JPY" })
	if len(got) != 1 || string(got[0]) != "b" {
		t.Errorf("filtered replay = %q", got)
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	rb := NewReplayBuffer(10)
	if len(rb.After(0, nil)) != 0 || rb.Oldest() != 0 {
		t.Error("empty buffer should return nothing")
	}
}
