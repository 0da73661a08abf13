package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nmea-bridge/internal/nmea"
	"nmea-bridge/internal/observability"
)

// Publisher hands an enriched record to the outside world.
type Publisher interface {
	Publish(ctx context.Context, rec EnrichedRecord) error
}

// Config wires a Driver.
type Config struct {
	Validator *nmea.Validator
	Publisher Publisher
	// Intervals throttles publishing per sentence type.
	Intervals map[string]time.Duration
	// VesselID seeds every new session's cache.
	VesselID string
	Logger   *slog.Logger
	// OnEvent, when set, receives every diagnostic event.
	OnEvent func(Event)
	// Capture, when set, receives every raw line before decoding.
	Capture func(line string)
	Now     func() time.Time
}

// Driver runs the decode-and-publish loop. One Driver can serve many
// connections at once; each Run call owns an independent Session.
type Driver struct {
	cfg      Config
	enricher *Enricher
	logger   *slog.Logger
}

func New(cfg Config) *Driver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Driver{
		cfg:      cfg,
		enricher: NewEnricher(cfg.Now),
		logger:   lg.With("component", "pipeline"),
	}
}

// Session is the per-connection state of one pipeline run.
type Session struct {
	ID       string
	Remote   string
	cache    *VesselCache
	throttle *Throttle
	state    State
	logger   *slog.Logger
}

func (d *Driver) newSession(remote string) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		Remote:   remote,
		cache:    NewVesselCache(d.cfg.VesselID),
		throttle: NewThrottle(d.cfg.Intervals),
		state:    StateConnecting,
		logger:   d.logger.With("session", id, "remote", remote),
	}
}

// Run reads sentences from r in arrival order until the stream ends.
// Bad sentences are reported and skipped. It returns nil on a clean end
// of stream, ctx.Err() when cancelled, and a *TransportError otherwise.
// Cancelling ctx closes r when it is an io.Closer, which unblocks the read.
func (d *Driver) Run(ctx context.Context, r io.Reader, remote string) error {
	s := d.newSession(remote)
	d.emit(s, Event{Kind: EventSessionOpened})
	observability.ActiveSessions.Inc()
	defer func() {
		s.state = StateClosed
		s.cache.Clear()
		observability.ActiveSessions.Dec()
		d.emit(s, Event{Kind: EventSessionClosed})
	}()

	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	s.state = StateStreaming
	s.logger.Info("session streaming")

	framer := nmea.NewFramer(r)
	for {
		line, err := framer.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info("stream closed")
				return nil
			}
			s.logger.Warn("stream read failed", "error", err)
			return &TransportError{Err: err}
		}
		d.handleLine(ctx, s, line)
	}
}

func (d *Driver) handleLine(ctx context.Context, s *Session, line string) {
	s.state = StateDecoding
	defer func() { s.state = StateStreaming }()

	observability.SentencesReceived.Inc()
	if d.cfg.Capture != nil {
		d.cfg.Capture(line)
	}

	start := time.Now()
	raw := nmea.NewRawSentence(line)
	rec, err := d.cfg.Validator.Decode(raw)
	observability.ObserveDecodeLatency(start)
	if err != nil {
		d.drop(s, raw.Text, err)
		return
	}
	tag := rec.SentenceType()
	observability.SentencesDecoded.WithLabelValues(tag).Inc()

	enriched := d.enricher.Enrich(rec, s.cache)
	if !s.throttle.Allow(tag, enriched.Timestamp) {
		observability.SentencesThrottled.WithLabelValues(tag).Inc()
		d.emit(s, Event{Kind: EventThrottled, Tag: tag})
		return
	}

	s.state = StatePublishing
	if err := d.cfg.Publisher.Publish(ctx, enriched); err != nil {
		s.logger.Warn("publish failed", "type", tag, "error", err)
		d.emit(s, Event{Kind: EventPublishFailed, Tag: tag, Line: raw.Text, Err: err})
		return
	}
	observability.Published.WithLabelValues(tag).Inc()
	d.emit(s, Event{Kind: EventPublished, Tag: tag})
}

func (d *Driver) drop(s *Session, line string, err error) {
	reason := nmea.Reason(err)
	observability.SentencesDropped.WithLabelValues(reason).Inc()

	var tag string
	var se *nmea.SentenceError
	if errors.As(err, &se) {
		tag = se.Tag
	}
	if errors.Is(err, nmea.ErrUnsupportedSentenceType) {
		s.logger.Debug("sentence skipped", "type", tag, "reason", reason)
	} else {
		s.logger.Warn("sentence dropped", "reason", reason, "error", err, "line", line)
	}
	d.emit(s, Event{Kind: EventDropped, Tag: tag, Line: line, Err: err})
}

func (d *Driver) emit(s *Session, ev Event) {
	if d.cfg.OnEvent == nil {
		return
	}
	ev.SessionID = s.ID
	ev.Remote = s.Remote
	ev.State = s.state
	ev.Time = d.cfg.Now()
	d.cfg.OnEvent(ev)
}
