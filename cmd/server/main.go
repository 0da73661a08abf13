package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nmea-bridge/internal/config"
	"nmea-bridge/internal/dispatcher"
	"nmea-bridge/internal/grpcclient"
	"nmea-bridge/internal/hub"
	"nmea-bridge/internal/link"
	"nmea-bridge/internal/natsbus"
	"nmea-bridge/internal/nmea"
	"nmea-bridge/internal/observability"
	"nmea-bridge/internal/pipeline"
	"nmea-bridge/internal/server"
	"nmea-bridge/internal/store"
	"nmea-bridge/internal/utilities"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("Starting nmea-bridge...", "mode", cfg.NMEA.Mode, "addr", cfg.Address())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("nmea-bridge stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("nmea-bridge stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Metrics.Enabled {
		go func() {
			if err := observability.StartMetricsServer(ctx, ":"+cfg.Metrics.Port); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	registry := nmea.DefaultRegistry()
	if tags := cfg.Tags(); len(tags) > 0 {
		sub, missing := registry.Only(tags)
		for _, tag := range missing {
			logger.Warn("no decoder for requested sentence type", "type", tag)
		}
		registry = sub
	}
	logger.Info("decoding sentence types", "types", registry.Describe())

	sinks, lk, closeSinks, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	var capture func(string)
	if cfg.Capture.Enabled {
		c, err := utilities.NewCapture(cfg.Capture.Dir, "NMEA", logger)
		if err != nil {
			return err
		}
		defer c.Close()
		capture = c.Line
	}

	driver := pipeline.New(pipeline.Config{
		Validator: nmea.NewValidator(registry),
		Publisher: dispatcher.New(cfg.Topic.Namespace, cfg.Topic.Fallback, sinks),
		Intervals: cfg.Intervals(),
		VesselID:  cfg.Vessel.MMSI,
		Logger:    logger,
		OnEvent:   eventHandler(logger, sessionNotifier(lk, cfg.Vessel.MMSI)),
		Capture:   capture,
	})

	srv := server.New(driver, server.Options{
		Addr:        cfg.Address(),
		ReadTimeout: cfg.NMEA.ReadTimeout.Duration(),
		RetryWait:   cfg.NMEA.RetryWait.Duration(),
		Logger:      logger,
	})
	return srv.Run(ctx, cfg.NMEA.Mode)
}

// asyncErrors counts failures that sinks report after Publish returned.
func asyncErrors(name string, logger *slog.Logger) func(string, error) {
	return func(topic string, err error) {
		observability.PublishErrors.WithLabelValues(name).Inc()
		logger.Warn("delivery failed", "sink", name, "topic", topic, "error", err)
	}
}

func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dispatcher.Multi, *link.Client, func(), error) {
	multi := dispatcher.NewMulti(logger)
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*dispatcher.Multi, *link.Client, func(), error) {
		closeAll()
		return nil, nil, nil, err
	}

	if cfg.NATS.Enabled {
		p, err := natsbus.Connect(ctx, natsbus.Options{
			URL:       cfg.NATS.URL,
			Name:      cfg.NATS.Name,
			JetStream: cfg.NATS.JetStream,
			Stream:    cfg.NATS.Stream,
			Subjects:  []string{natsbus.Subject(dispatcher.Segment(cfg.Topic.Namespace)) + ".>"},
			Logger:    logger,
			OnError:   asyncErrors("nats", logger),
		})
		if err != nil {
			return fail(err)
		}
		multi.Add("nats", p)
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := p.Close(closeCtx); err != nil {
				logger.Warn("nats close", "error", err)
			}
		})
	}

	if cfg.Redis.Enabled {
		s, err := store.NewRedisSink(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.LatestTTL.Duration(), logger)
		if err != nil {
			return fail(err)
		}
		multi.Add("redis", s)
		closers = append(closers, func() { _ = s.Close() })
	}

	if cfg.GRPC.Enabled {
		f, err := grpcclient.NewForwarder(grpcclient.Options{
			Addr:      cfg.GRPC.Server,
			Timeout:   cfg.GRPC.Timeout.Duration(),
			QueueSize: cfg.GRPC.QueueSize,
			Logger:    logger,
			OnError:   asyncErrors("grpc", logger),
		})
		if err != nil {
			return fail(err)
		}
		multi.Add("grpc", f)
		closers = append(closers, func() { _ = f.Close() })
	}

	var lk *link.Client
	if cfg.Link.Enabled {
		lk = link.New(cfg.Link.Addr, cfg.Link.RetryWait.Duration(), logger)
		go lk.Run(ctx)
		multi.Add("link", lk)
	}

	if cfg.WebSocket.Enabled {
		h := hub.New(logger)
		go func() {
			if err := h.Serve(ctx, cfg.WebSocket.Addr, cfg.WebSocket.Path); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Error("websocket server failed", "error", err)
			}
		}()
		multi.Add("websocket", h)
	}

	logger.Info("sinks ready", "count", multi.Len())
	return multi, lk, closeAll, nil
}

// eventHandler logs each pipeline event at debug level and passes it on
// to next, when set.
func eventHandler(logger *slog.Logger, next func(pipeline.Event)) func(pipeline.Event) {
	return func(ev pipeline.Event) {
		if logger.Enabled(context.Background(), slog.LevelDebug) {
			attrs := []any{"kind", ev.Kind.String(), "session", ev.SessionID, "state", ev.State.String()}
			if ev.Tag != "" {
				attrs = append(attrs, "type", ev.Tag)
			}
			if ev.Err != nil {
				attrs = append(attrs, "error", ev.Err)
			}
			logger.Debug("pipeline event", attrs...)
		}
		if next != nil {
			next(ev)
		}
	}
}

// sessionNotifier forwards session open and close to the link proxy.
func sessionNotifier(lk *link.Client, seed string) func(pipeline.Event) {
	if lk == nil {
		return nil
	}
	return func(ev pipeline.Event) {
		info := link.SessionInfo{ID: ev.SessionID, Remote: ev.Remote}
		switch ev.Kind {
		case pipeline.EventSessionOpened:
			info.State = link.SessionStateOpen
			info.VesselID = seed
		case pipeline.EventSessionClosed:
			info.State = link.SessionStateClose
		default:
			return
		}
		lk.SendSession(info)
	}
}
