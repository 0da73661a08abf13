package server

import (
	"net"
	"time"
)

// deadlineReader refreshes the read deadline before every read, so only
// an idle peer times out.
type deadlineReader struct {
	net.Conn
	timeout time.Duration
}

func newDeadlineReader(conn net.Conn, timeout time.Duration) *deadlineReader {
	return &deadlineReader{Conn: conn, timeout: timeout}
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.Conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.Conn.Read(p)
}

// maxDatagram is the largest UDP payload.
const maxDatagram = 65535

// datagramReader turns datagrams into a byte stream without truncating
// any of them, whatever buffer size the caller reads with.
type datagramReader struct {
	pc      net.PacketConn
	timeout time.Duration
	buf     []byte
	pending []byte
}

func newDatagramReader(pc net.PacketConn, timeout time.Duration) *datagramReader {
	return &datagramReader{pc: pc, timeout: timeout, buf: make([]byte, maxDatagram+1)}
}

func (r *datagramReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.timeout > 0 {
			if err := r.pc.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
				return 0, err
			}
		}
		n, _, err := r.pc.ReadFrom(r.buf[:maxDatagram])
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		if r.buf[n-1] != '\n' {
			r.buf[n] = '\n'
			n++
		}
		r.pending = r.buf[:n]
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *datagramReader) Close() error {
	return r.pc.Close()
}
