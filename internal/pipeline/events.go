package pipeline

import (
	"fmt"
	"time"
)

// State is where a session's pipeline currently is.
type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateDecoding
	StatePublishing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDecoding:
		return "decoding"
	case StatePublishing:
		return "publishing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind classifies diagnostic events.
type EventKind int

const (
	EventSessionOpened EventKind = iota
	EventSessionClosed
	EventPublished
	EventDropped
	EventThrottled
	EventPublishFailed
)

func (k EventKind) String() string {
	return [...]string{"session_opened", "session_closed", "published", "dropped", "throttled", "publish_failed"}[k]
}

// Event reports what happened to one sentence or session. Every dropped
// sentence produces one. State is the session's state when it happened.
type Event struct {
	Kind      EventKind
	SessionID string
	Remote    string
	State     State
	Tag       string
	Line      string
	Err       error
	Time      time.Time
}

// TransportError ends a session: the stream can no longer be read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
