// Package server moves NMEA bytes from the network into the pipeline.
// Every connection, or the single UDP socket, is one pipeline session.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"nmea-bridge/internal/config"
	"nmea-bridge/internal/observability"
	"nmea-bridge/internal/pipeline"
)

// Runner consumes one stream of sentences until it ends.
type Runner interface {
	Run(ctx context.Context, r io.Reader, remote string) error
}

type Options struct {
	Addr string
	// ReadTimeout ends a session whose peer stays silent this long.
	// Zero waits forever.
	ReadTimeout time.Duration
	// RetryWait is the pause between dial attempts.
	RetryWait time.Duration
	Logger    *slog.Logger
}

type Server struct {
	opts   Options
	runner Runner
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(runner Runner, opts Options) *Server {
	if opts.RetryWait <= 0 {
		opts.RetryWait = 5 * time.Second
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Server{
		opts:   opts,
		runner: runner,
		logger: lg.With("component", "server"),
	}
}

// Run starts the transport for mode and blocks until ctx is done.
func (s *Server) Run(ctx context.Context, mode string) error {
	switch mode {
	case config.ModeDial:
		return s.Dial(ctx)
	case config.ModeListen:
		return s.ListenTCP(ctx)
	case config.ModeUDP:
		return s.ListenUDP(ctx)
	default:
		return fmt.Errorf("unknown transport mode %q", mode)
	}
}

func (s *Server) ListenTCP(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("error starting TCP server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then waits for
// open sessions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.logger.Info("TCP server listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("accept error", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.HandleConnection(ctx, c)
		}(conn)
	}
}

// HandleConnection runs one session over conn and closes it.
func (s *Server) HandleConnection(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	observability.Connections.Inc()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}

	remote := conn.RemoteAddr().String()
	lg := s.logger.With("remote", remote)
	lg.Info("connection opened")

	err := s.runner.Run(ctx, newDeadlineReader(conn, s.opts.ReadTimeout), remote)
	var te *pipeline.TransportError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		lg.Info("connection closed")
	case errors.As(err, &te):
		lg.Warn("connection lost", "error", te.Err)
	default:
		lg.Error("session failed", "error", err)
	}
	return err
}
