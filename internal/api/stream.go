package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxStreamConns = 8
	streamQueue    = 16
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
)

// Message is one frame pushed to stream subscribers.
type Message struct {
	Type  string `json:"type"` // hello, month, market
	Month int    `json:"month"`
	Data  any    `json:"data,omitempty"`
}

// Hub fans simulation events out to websocket subscribers. Slow subscribers
// are dropped rather than allowed to stall the engine.
type Hub struct {
	mu       sync.Mutex
	clients  map[*subscriber]struct{}
	pending  int // slots held by upgrades in progress
	upgrader websocket.Upgrader
}

type subscriber struct {
	conn *websocket.Conn
	out  chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// reserve claims a connection slot, failing when the hub is full.
func (h *Hub) reserve() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients)+h.pending >= maxStreamConns {
		return false
	}
	h.pending++
	return true
}

// admit turns a reserved slot into a subscriber, or frees it when c is nil.
func (h *Hub) admit(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending--
	if c != nil {
		h.clients[c] = struct{}{}
	}
}

// Broadcast queues msg for every subscriber.
func (h *Hub) Broadcast(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("stream encode failed", "type", msg.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- b:
		default:
			slog.Warn("stream subscriber too slow, dropping")
			c.conn.Close()
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

// Serve upgrades the request and streams until either side hangs up. hello
// is sent first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, hello Message) {
	if !h.reserve() {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.admit(nil)
		return
	}
	defer conn.Close()

	c := &subscriber{conn: conn, out: make(chan []byte, streamQueue)}
	if b, err := json.Marshal(hello); err == nil {
		c.out <- b
	}
	h.admit(c)
	slog.Info("stream client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop(ctx)
	}()

	// Reader loop: clients only send control frames.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	conn.Close()
	<-done

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	slog.Info("stream client disconnected", "remote", r.RemoteAddr)
}

func (c *subscriber) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.conn.Close()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
