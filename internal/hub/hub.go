// Package hub broadcasts bridge messages to WebSocket subscribers.
//
// A subscriber may narrow what it receives with a topic prefix:
//
//	ws://host:8080/ws?topic=nmea/123456789/
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nmea-bridge/internal/observability"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

type frame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	conn      *websocket.Conn
	prefix    string
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub is an http.Handler that upgrades subscribers and a sink that fans
// messages out to them. Slow subscribers miss messages; they never hold
// up the pipeline.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	wg      sync.WaitGroup
}

func New(lg *slog.Logger) *Hub {
	if lg == nil {
		lg = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  lg.With("component", "websocket"),
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{
		conn:   conn,
		prefix: r.URL.Query().Get("topic"),
		send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	observability.WebSocketClients.Inc()
	h.logger.Info("subscriber connected", "remote", r.RemoteAddr, "prefix", c.prefix, "clients", n)

	h.wg.Add(2)
	go h.writeLoop(c)
	go h.readLoop(c)
}

// readLoop only watches for the subscriber going away.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		observability.WebSocketClients.Dec()
		c.close()
	}
}

// Publish delivers the message to every subscriber whose prefix matches.
func (h *Hub) Publish(_ context.Context, topic string, payload []byte) error {
	msg, err := json.Marshal(frame{Topic: topic, Payload: json.RawMessage(payload)})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !strings.HasPrefix(topic, c.prefix) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			observability.WebSocketDropped.Inc()
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		observability.WebSocketClients.Dec()
		c.close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// Serve runs an HTTP server exposing the hub at path until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		h.Close()
	}()
	h.logger.Info("listening", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
