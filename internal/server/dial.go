package server

import (
	"context"
	"net"
	"time"
)

// Dial connects to the talker and keeps reconnecting after failures or
// lost connections until ctx is done.
func (s *Server) Dial(ctx context.Context) error {
	d := net.Dialer{Timeout: 10 * time.Second, KeepAlive: 60 * time.Second}
	lg := s.logger.With("addr", s.opts.Addr)
	for {
		conn, err := d.DialContext(ctx, "tcp", s.opts.Addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			lg.Warn("dial failed, retrying", "error", err, "wait", s.opts.RetryWait)
		} else {
			lg.Info("connected")
			_ = s.HandleConnection(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
		}

		t := time.NewTimer(s.opts.RetryWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}
