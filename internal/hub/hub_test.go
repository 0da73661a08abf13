package hub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHubBroadcast(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	all := dial(t, srv, "")
	own := dial(t, srv, "?topic=nmea/123456789/")
	require.Eventually(t, func() bool { return h.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, "nmea/unknown/GGA", []byte(`{"sentence_type":"GGA"}`)))
	require.NoError(t, h.Publish(ctx, "nmea/123456789/GLL", []byte(`{"sentence_type":"GLL"}`)))

	assert.JSONEq(t, `{"topic":"nmea/unknown/GGA","payload":{"sentence_type":"GGA"}}`, read(t, all))
	assert.JSONEq(t, `{"topic":"nmea/123456789/GLL","payload":{"sentence_type":"GLL"}}`, read(t, all))
	// the filtered subscriber never sees the GGA
	assert.JSONEq(t, `{"topic":"nmea/123456789/GLL","payload":{"sentence_type":"GLL"}}`, read(t, own))
}

func TestHubForgetsClosedSubscribers(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, h.Publish(context.Background(), "nmea/x/GLL", []byte(`{}`)))
}

func TestHubCloseDisconnects(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	h.Close()
	assert.Equal(t, 0, h.Clients())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
