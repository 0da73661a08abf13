package link

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutConnection(t *testing.T) {
	c := New("127.0.0.1:1", time.Second, nil)
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Publish(context.Background(), "nmea/x/GLL", []byte(`{}`)), ErrNotConnected)
}

func TestClientStreamsNDJSON(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ln.Addr().String(), 50*time.Millisecond, nil)
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	c.SendSession(SessionInfo{ID: "s1", Remote: "10.0.0.5:4000", State: SessionStateOpen})
	require.NoError(t, c.Publish(ctx, "nmea/123456789/GLL", []byte(`{"sentence_type":"GLL"}`)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewScanner(conn)

	require.True(t, r.Scan())
	var sess map[string]any
	require.NoError(t, json.Unmarshal(r.Bytes(), &sess))
	assert.Equal(t, "session_open", sess["event"])
	assert.Equal(t, "s1", sess["session"])
	assert.NotContains(t, sess, "vessel_id")

	require.True(t, r.Scan())
	assert.JSONEq(t, `{"topic":"nmea/123456789/GLL","payload":{"sentence_type":"GLL"}}`, r.Text())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, c.Connected())
}

func TestClientReconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ln.Addr().String(), 20*time.Millisecond, nil)
	go c.Run(ctx)

	first, err := ln.Accept()
	require.NoError(t, err)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)
	first.Close()

	second, err := ln.Accept()
	require.NoError(t, err)
	defer second.Close()
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "session_close", SessionStateClose.String())
}

func TestPublishToStalledProxyTimesOut(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	c := New("127.0.0.1:1", time.Second, nil)
	c.writeTimeout = 50 * time.Millisecond
	c.setConn(local)
	require.True(t, c.Connected())

	// remote never reads, so the write can only end by its deadline
	errc := make(chan error, 1)
	go func() { errc <- c.Publish(context.Background(), "nmea/x/GLL", []byte(`{}`)) }()

	select {
	case err := <-errc:
		var ne net.Error
		require.ErrorAs(t, err, &ne)
		assert.True(t, ne.Timeout())
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a proxy that stopped reading")
	}
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Publish(context.Background(), "nmea/x/GLL", []byte(`{}`)), ErrNotConnected)
}
