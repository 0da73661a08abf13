package link

// SessionInfo is what the proxy learns about one NMEA session.
type SessionInfo struct {
	ID       string
	Remote   string
	VesselID string
	State    SessionState
}

// SessionState is the kind of session event sent to the proxy.
type SessionState int

const (
	SessionStateUnknown SessionState = iota
	SessionStateOpen                 // session_open
	SessionStateClose                // session_close
)

func (s SessionState) String() string {
	switch s {
	case SessionStateOpen:
		return "session_open"
	case SessionStateClose:
		return "session_close"
	default:
		return "unknown"
	}
}
