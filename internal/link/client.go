// Package link streams bridge output as NDJSON to a line-oriented TCP
// proxy. The connection is redialed whenever it drops.
package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

var ErrNotConnected = errors.New("link: not connected")

// defaultWriteTimeout bounds one line write. A proxy that stops reading
// must not stall the publish path.
const defaultWriteTimeout = 5 * time.Second

// Client holds at most one proxy connection at a time.
type Client struct {
	addr         string
	retryWait    time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

func New(addr string, retryWait time.Duration, lg *slog.Logger) *Client {
	if retryWait <= 0 {
		retryWait = 5 * time.Second
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{
		addr:         addr,
		retryWait:    retryWait,
		writeTimeout: defaultWriteTimeout,
		logger:       lg.With("component", "link", "addr", addr),
	}
}

// Run dials and redials the proxy until ctx is done.
func (c *Client) Run(ctx context.Context) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("dial failed", "err", err)
			if !sleep(ctx, c.retryWait) {
				return
			}
			continue
		}

		c.setConn(conn)
		c.logger.Info("connected", "remote", conn.RemoteAddr().String())
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

		// reads until the proxy goes away
		c.readLoop(conn)

		stop()
		c.clearConn(conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("connection closed, reconnecting")
		if !sleep(ctx, c.retryWait) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) clearConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Connected reports whether a proxy connection is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewScanner(conn)
	for r.Scan() {
		// the proxy has nothing to say to us yet
		c.logger.Debug("incoming line", "line", r.Text())
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("read error", "err", err)
	}
}

// send writes v as one JSON line. Writes are serialized so lines never
// interleave. A failed or timed-out write drops the connection, which
// ends Run's read loop and triggers a redial.
func (c *Client) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.dropLocked()
		return fmt.Errorf("link write: %w", err)
	}
	if _, err := c.conn.Write(append(b, '\n')); err != nil {
		c.dropLocked()
		return fmt.Errorf("link write: %w", err)
	}
	return nil
}

func (c *Client) dropLocked() {
	_ = c.conn.Close()
	c.conn = nil
}

type messagePayload struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

type sessionPayload struct {
	Session  string `json:"session"`
	Event    string `json:"event"`
	Remote   string `json:"remote,omitempty"`
	VesselID string `json:"vessel_id,omitempty"`
}

// Publish sends one bridge message. It does not buffer while the proxy
// is away: the message is dropped and ErrNotConnected returned.
func (c *Client) Publish(_ context.Context, topic string, payload []byte) error {
	return c.send(messagePayload{Topic: topic, Payload: json.RawMessage(payload)})
}

// SendSession tells the proxy that an NMEA session opened or closed.
func (c *Client) SendSession(info SessionInfo) {
	pl := sessionPayload{
		Session:  info.ID,
		Event:    info.State.String(),
		Remote:   info.Remote,
		VesselID: info.VesselID,
	}
	if err := c.send(pl); err != nil {
		c.logger.Debug("send session event failed", "session", info.ID, "err", err)
	}
}
