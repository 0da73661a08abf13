// Package grpcclient forwards bridge messages to a downstream gRPC
// service. Messages go out as google.protobuf.Struct so no generated code
// is needed on either side:
//
//	{"topic": "nmea/123456789/GLL", "payload": {...}}
package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName   = "nmea.bridge.v1.Forwarder"
	PublishMethod = "/" + ServiceName + "/Publish"
)

var (
	ErrQueueFull = errors.New("forwarder queue full")
	ErrClosed    = errors.New("forwarder closed")
)

type Options struct {
	Addr      string
	Timeout   time.Duration
	QueueSize int
	Logger    *slog.Logger
	// OnError receives failures of messages already accepted by Publish.
	OnError     func(topic string, err error)
	DialOptions []grpc.DialOption
}

type message struct {
	topic   string
	payload []byte
}

// Forwarder sends messages from a bounded queue on a single worker, so
// the decode loop never waits on the network.
type Forwarder struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *slog.Logger
	onError func(topic string, err error)

	mu     sync.RWMutex
	closed bool
	queue  chan message
	wg     sync.WaitGroup
}

func NewForwarder(opts Options) (*Forwarder, error) {
	dial := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts.DialOptions...)
	conn, err := grpc.NewClient(opts.Addr, dial...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", opts.Addr, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	f := &Forwarder{
		conn:    conn,
		timeout: opts.Timeout,
		logger:  lg.With("component", "grpc", "target", opts.Addr),
		onError: opts.OnError,
		queue:   make(chan message, opts.QueueSize),
	}
	f.wg.Add(1)
	go f.run()
	return f, nil
}

// Publish queues the message. It fails fast with ErrQueueFull rather
// than block.
func (f *Forwarder) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrClosed
	}
	msg := message{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case f.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (f *Forwarder) run() {
	defer f.wg.Done()
	for msg := range f.queue {
		if err := f.send(msg); err != nil {
			f.logger.Error("forward failed", "topic", msg.topic, "error", err)
			if f.onError != nil {
				f.onError(msg.topic, err)
			}
		}
	}
}

func (f *Forwarder) send(msg message) error {
	req, err := Request(msg.topic, msg.payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	return f.conn.Invoke(ctx, PublishMethod, req, &emptypb.Empty{})
}

// Request builds the wire message for one topic and JSON payload.
func Request(topic string, payload []byte) (*structpb.Struct, error) {
	body := &structpb.Struct{}
	if err := protojson.Unmarshal(payload, body); err != nil {
		return nil, fmt.Errorf("payload for %s: %w", topic, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"topic":   structpb.NewStringValue(topic),
		"payload": structpb.NewStructValue(body),
	}}, nil
}

// Close stops accepting messages, sends what is queued and closes the
// connection.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	f.wg.Wait()
	return f.conn.Close()
}
