// Package natsbus publishes bridge messages on NATS. Topics map to
// subjects by turning each '/' into '.', so nmea/123456789/GLL is
// published on nmea.123456789.GLL.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Options struct {
	URL  string
	Name string
	// JetStream switches to asynchronous JetStream publishing.
	JetStream bool
	// Stream is created or updated to capture Subjects when set.
	Stream   string
	Subjects []string
	Logger   *slog.Logger
	// OnError receives JetStream publish failures reported after Publish
	// has returned.
	OnError func(topic string, err error)
}

type Publisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	onError func(topic string, err error)
}

// Subject converts a slash separated topic to a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

// Topic is the inverse of Subject.
func Topic(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

func Connect(ctx context.Context, opts Options) (*Publisher, error) {
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg = lg.With("component", "nats")
	p := &Publisher{logger: lg, onError: opts.OnError}

	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DrainTimeout(10*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				lg.Warn("disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			lg.Info("reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			lg.Info("connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", opts.URL, err)
	}
	p.nc = nc

	if opts.JetStream {
		js, err := jetstream.New(nc, jetstream.WithPublishAsyncErrHandler(p.asyncError))
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		if opts.Stream != "" {
			_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
				Name:     opts.Stream,
				Subjects: opts.Subjects,
			})
			if err != nil {
				nc.Close()
				return nil, fmt.Errorf("stream %s: %w", opts.Stream, err)
			}
		}
		p.js = js
	}
	lg.Info("connected", "url", nc.ConnectedUrl(), "jetstream", opts.JetStream)
	return p, nil
}

func (p *Publisher) asyncError(_ jetstream.JetStream, msg *nats.Msg, err error) {
	topic := Topic(msg.Subject)
	p.logger.Error("async publish failed", "topic", topic, "error", err)
	if p.onError != nil {
		p.onError(topic, err)
	}
}

// Publish sends payload on the subject for topic. With JetStream the
// acknowledgement arrives later and failures go to OnError.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := Subject(topic)
	if p.js != nil {
		_, err := p.js.PublishAsync(subject, payload)
		return err
	}
	return p.nc.Publish(subject, payload)
}

// Close waits for outstanding JetStream acks, bounded by ctx, then drains
// the connection.
func (p *Publisher) Close(ctx context.Context) error {
	var errs []error
	if p.js != nil {
		select {
		case <-p.js.PublishAsyncComplete():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("pending acks: %w", ctx.Err()))
		}
	}
	if err := p.nc.Drain(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
