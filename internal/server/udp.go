package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"nmea-bridge/internal/observability"
)

// ListenUDP reads NMEA broadcast datagrams as a single session.
func (s *Server) ListenUDP(ctx context.Context) error {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("error starting UDP listener: %w", err)
	}
	return s.ServeUDP(ctx, pc)
}

// ServeUDP reads datagrams from pc until ctx is done. Each datagram
// holds whole sentences; a missing final line break is supplied. A quiet
// period longer than the read timeout ends the current session and starts
// a fresh one on the same socket, since there is no peer to reconnect.
func (s *Server) ServeUDP(ctx context.Context, pc net.PacketConn) error {
	defer pc.Close()

	local := "udp:" + pc.LocalAddr().String()
	s.logger.Info("UDP listener started", "addr", pc.LocalAddr().String())
	r := newDatagramReader(pc, s.opts.ReadTimeout)
	for {
		observability.Connections.Inc()
		err := s.runner.Run(ctx, r, local)
		if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil
		}
		if !isTimeout(err) {
			return err
		}
		s.logger.Info("no datagrams within read timeout, restarting session", "addr", pc.LocalAddr().String())
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
