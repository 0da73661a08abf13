package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"nmea-bridge/internal/nmea"
	"nmea-bridge/internal/observability"
	"nmea-bridge/internal/pipeline"
)

const (
	DefaultNamespace = "nmea"
	// DefaultFallback stands in for the vessel segment until an
	// identifier is known.
	DefaultFallback = "unknown"

	FieldTimestamp = "timestamp"
	FieldVesselID  = "vessel_id"
)

// Sink accepts outbound messages. Delivery guarantees are the sink's own.
type Sink interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, topic string, payload []byte) error

func (fn SinkFunc) Publish(ctx context.Context, topic string, payload []byte) error {
	return fn(ctx, topic, payload)
}

// Message is one outbound topic/payload pair.
type Message struct {
	Topic   string
	Payload []byte
}

// PublishError reports a sink that refused a message.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Dispatcher maps enriched records to topic and JSON payload and hands
// them to a sink.
type Dispatcher struct {
	namespace string
	fallback  string
	sink      Sink
}

func New(namespace, fallback string, sink Sink) *Dispatcher {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &Dispatcher{
		namespace: Segment(namespace),
		fallback:  Segment(fallback),
		sink:      sink,
	}
}

// Topic builds "<namespace>/<vessel-or-fallback>/<sentence_type>".
func (d *Dispatcher) Topic(rec pipeline.EnrichedRecord) string {
	vessel := d.fallback
	if rec.VesselID != "" {
		vessel = Segment(rec.VesselID)
	}
	return d.namespace + "/" + vessel + "/" + Segment(rec.SentenceType())
}

// Payload renders the record's fields in decode order, then timestamp and,
// when known, vessel_id.
func (d *Dispatcher) Payload(rec pipeline.EnrichedRecord) ([]byte, error) {
	extra := []nmea.Field{{Name: FieldTimestamp, Value: rec.Timestamp}}
	if rec.VesselID != "" {
		extra = append(extra, nmea.Field{Name: FieldVesselID, Value: rec.VesselID})
	}
	var buf bytes.Buffer
	if err := rec.Record.AppendJSON(&buf, extra); err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", rec.SentenceType(), err)
	}
	return buf.Bytes(), nil
}

func (d *Dispatcher) Map(rec pipeline.EnrichedRecord) (Message, error) {
	payload, err := d.Payload(rec)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: d.Topic(rec), Payload: payload}, nil
}

// Publish maps rec and hands it to the sink. Sink failures come back as
// *PublishError; they are not retried here.
func (d *Dispatcher) Publish(ctx context.Context, rec pipeline.EnrichedRecord) error {
	msg, err := d.Map(rec)
	if err != nil {
		return err
	}
	if err := d.sink.Publish(ctx, msg.Topic, msg.Payload); err != nil {
		return &PublishError{Topic: msg.Topic, Err: err}
	}
	return nil
}

// Segment makes s safe as one topic level: separators, wildcards and
// whitespace become '_'.
func Segment(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// ---------------------------------------------------------------------------
// fan-out

type namedSink struct {
	name string
	sink Sink
	// failing is set while the sink keeps refusing messages, so an
	// outage is logged once rather than per message.
	failing atomic.Bool
}

// Multi publishes every message to each of its sinks in order. A failing
// sink does not stop the others. Publish fails only when no sink took the
// message; partial failures are counted and logged per sink.
type Multi struct {
	sinks  []*namedSink
	logger *slog.Logger
}

func NewMulti(lg *slog.Logger) *Multi {
	if lg == nil {
		lg = slog.Default()
	}
	return &Multi{logger: lg.With("component", "dispatcher")}
}

// Add registers sink under name, which labels its metrics.
func (m *Multi) Add(name string, sink Sink) {
	m.sinks = append(m.sinks, &namedSink{name: name, sink: sink})
}

func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Publish(ctx context.Context, topic string, payload []byte) error {
	var errs []error
	delivered := 0
	for _, s := range m.sinks {
		if err := s.sink.Publish(ctx, topic, payload); err != nil {
			observability.PublishErrors.WithLabelValues(s.name).Inc()
			if !s.failing.Swap(true) {
				m.logger.Warn("sink refused message", "sink", s.name, "topic", topic, "error", err)
			} else {
				m.logger.Debug("sink refused message", "sink", s.name, "topic", topic, "error", err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		delivered++
		observability.SinkDelivered.WithLabelValues(s.name).Inc()
		if s.failing.Swap(false) {
			m.logger.Info("sink recovered", "sink", s.name)
		}
	}
	if delivered > 0 {
		return nil
	}
	return errors.Join(errs...)
}
